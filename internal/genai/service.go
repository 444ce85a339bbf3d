package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Skufu/medify/internal/recommend"
)

// Service runs the structured AI operations against a Model. Each call is a
// single attempt: no retry, backoff or caching. Without a model, treatment
// plans and image analysis fall back to canned demo responses and the other
// operations return ErrNotConfigured.
type Service struct {
	model    Model
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewService(model Model, logger zerolog.Logger) *Service {
	return &Service{
		model:    model,
		validate: newValidator(),
		logger:   logger.With().Str("component", "genai").Logger(),
	}
}

func (s *Service) Configured() bool {
	return s.model != nil
}

func (s *Service) TreatmentPlan(ctx context.Context, symptoms string, budget float64) (*TreatmentPlan, error) {
	if s.model == nil {
		s.logger.Warn().Msg("no model configured, returning mock treatment plan")
		return mockTreatmentPlan(budget), nil
	}

	resp, err := s.model.Generate(ctx, Request{
		Prompt: buildTreatmentPlanPrompt(symptoms, budget),
		Schema: treatmentPlanSchema,
	})
	if err != nil {
		return nil, s.fail("treatment_plan", err)
	}

	var wire treatmentPlanWire
	if err := decodeStructured(s.validate, resp.Text, &wire); err != nil {
		return nil, s.fail("treatment_plan", err)
	}
	return wire.plan(), nil
}

func (s *Service) AnalyzeSymptomImage(ctx context.Context, img Image, notes string) (*SymptomAnalysis, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrInvalidImage)
	}
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidImage, img.MIMEType)
	}

	if s.model == nil {
		s.logger.Warn().Msg("no model configured, returning mock symptom analysis")
		return mockSymptomAnalysis(), nil
	}

	resp, err := s.model.Generate(ctx, Request{
		Prompt: buildSymptomImagePrompt(notes),
		Images: []Image{img},
		Schema: symptomAnalysisSchema,
	})
	if err != nil {
		return nil, s.fail("symptom_analysis", err)
	}

	var wire symptomAnalysisWire
	if err := decodeStructured(s.validate, resp.Text, &wire); err != nil {
		return nil, s.fail("symptom_analysis", err)
	}
	return wire.analysis(), nil
}

// PrescriptionSuggestion asks the model for a recommendation in the same
// shape the rule engine produces.
func (s *Service) PrescriptionSuggestion(ctx context.Context, symptoms string) (*recommend.Recommendation, error) {
	if s.model == nil {
		return nil, ErrNotConfigured
	}

	resp, err := s.model.Generate(ctx, Request{
		Prompt: buildPrescriptionPrompt(symptoms),
		Schema: prescriptionSchema,
	})
	if err != nil {
		return nil, s.fail("prescription", err)
	}

	var wire suggestionWire
	if err := decodeStructured(s.validate, resp.Text, &wire); err != nil {
		return nil, s.fail("prescription", err)
	}
	return wire.recommendation(), nil
}

func (s *Service) FindHospitals(ctx context.Context, lat, lng float64) (*HospitalSearch, error) {
	if s.model == nil {
		return nil, ErrNotConfigured
	}

	resp, err := s.model.Generate(ctx, Request{
		Prompt:   hospitalsPrompt,
		Location: &LatLng{Latitude: lat, Longitude: lng},
	})
	if err != nil {
		return nil, s.fail("hospitals", err)
	}

	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return nil, s.fail("hospitals", &ParseError{Reason: "empty response"})
	}

	places := resp.Places
	if places == nil {
		places = []Place{}
	}
	return &HospitalSearch{Summary: summary, Places: places}, nil
}

func (s *Service) fail(operation string, err error) error {
	s.logger.Error().Err(err).Str("operation", operation).Msg("AI request failed")
	return err
}

func mockTreatmentPlan(budget float64) *TreatmentPlan {
	return &TreatmentPlan{
		DiagnosisSuggestion: "Based on the symptoms, this could be Gastritis or Acid Reflux. This is a mock response as the API key is missing.",
		Tests: []TreatmentTest{
			{Name: "Complete Blood Count (CBC)", Cost: 350, Lab: "Thyrocare", Priority: "medium", WhyNeeded: "To check for signs of infection or anemia."},
		},
		Medicines: []TreatmentMedicine{
			{
				GenericName:  "Pantoprazole",
				BrandOptions: []BrandOption{{Name: "Pantocid", Price: 150}, {Name: "Generic", Price: 80}},
				Dosage:       "40mg",
				Frequency:    "Once a day before breakfast",
				Duration:     "7 days",
			},
		},
		Consultation:           Consultation{Type: "Teleconsultation", Cost: 400},
		TotalCost:              900,
		RemainingBudget:        budget - 900,
		FollowUpRecommendation: "If symptoms persist for more than 3 days, a physical consultation is necessary.",
	}
}

func mockSymptomAnalysis() *SymptomAnalysis {
	return &SymptomAnalysis{
		Notes:         "This is a mock analysis as the API key is missing. The image shows some redness and inflammation.",
		InfectionRisk: "medium",
		Advice:        []string{"Keep the area clean and dry.", "Consult a doctor for a proper diagnosis."},
	}
}
