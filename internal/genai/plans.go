package genai

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Skufu/medify/internal/recommend"
)

type TreatmentTest struct {
	Name      string  `json:"name"`
	Cost      float64 `json:"cost"`
	Lab       string  `json:"lab"`
	Priority  string  `json:"priority"`
	WhyNeeded string  `json:"why_needed"`
}

type BrandOption struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type TreatmentMedicine struct {
	GenericName  string        `json:"generic_name"`
	BrandOptions []BrandOption `json:"brand_options"`
	Dosage       string        `json:"dosage"`
	Frequency    string        `json:"frequency"`
	Duration     string        `json:"duration"`
}

type Consultation struct {
	Type string  `json:"type"`
	Cost float64 `json:"cost"`
}

type TreatmentPlan struct {
	DiagnosisSuggestion    string              `json:"diagnosis_suggestion"`
	Tests                  []TreatmentTest     `json:"tests"`
	Medicines              []TreatmentMedicine `json:"medicines"`
	Consultation           Consultation        `json:"consultation"`
	TotalCost              float64             `json:"total_cost"`
	RemainingBudget        float64             `json:"remaining_budget"`
	FollowUpRecommendation string              `json:"follow_up_recommendation"`
}

type SymptomAnalysis struct {
	Notes         string   `json:"notes"`
	InfectionRisk string   `json:"infection_risk"`
	Advice        []string `json:"advice"`
}

type HospitalSearch struct {
	Summary string  `json:"summary"`
	Places  []Place `json:"places"`
}

// Wire shapes mirror the response schemas. Required numbers are pointers so
// a missing field is distinguishable from zero.

type treatmentPlanWire struct {
	DiagnosisSuggestion    string            `json:"diagnosis_suggestion" validate:"required"`
	Tests                  []testWire        `json:"tests" validate:"required,dive"`
	Medicines              []medicineWire    `json:"medicines" validate:"required,dive"`
	Consultation           *consultationWire `json:"consultation" validate:"required"`
	TotalCost              *float64          `json:"total_cost" validate:"required,gte=0"`
	RemainingBudget        *float64          `json:"remaining_budget" validate:"required"`
	FollowUpRecommendation string            `json:"follow_up_recommendation" validate:"required"`
}

type testWire struct {
	Name      string   `json:"name" validate:"required"`
	Cost      *float64 `json:"cost" validate:"required,gte=0"`
	Lab       string   `json:"lab" validate:"required"`
	Priority  string   `json:"priority" validate:"required,oneof=high medium low"`
	WhyNeeded string   `json:"why_needed" validate:"required"`
}

type medicineWire struct {
	GenericName  string      `json:"generic_name" validate:"required"`
	BrandOptions []brandWire `json:"brand_options" validate:"required,dive"`
	Dosage       string      `json:"dosage" validate:"required"`
	Frequency    string      `json:"frequency" validate:"required"`
	Duration     string      `json:"duration" validate:"required"`
}

type brandWire struct {
	Name  string   `json:"name" validate:"required"`
	Price *float64 `json:"price" validate:"required,gte=0"`
}

type consultationWire struct {
	Type string   `json:"type" validate:"required"`
	Cost *float64 `json:"cost" validate:"required,gte=0"`
}

type symptomAnalysisWire struct {
	Notes         string   `json:"notes" validate:"required"`
	InfectionRisk string   `json:"infection_risk" validate:"required,oneof=low medium high"`
	Advice        []string `json:"advice" validate:"required,dive,required"`
}

type suggestionWire struct {
	Diagnosis string               `json:"diagnosis" validate:"required"`
	Items     []suggestionItemWire `json:"items" validate:"required,dive"`
	Warnings  []string             `json:"warnings" validate:"required,dive,required"`
}

type suggestionItemWire struct {
	Medicine string      `json:"medicine" validate:"required"`
	Dosage   *dosageWire `json:"dosage" validate:"required"`
	Reason   string      `json:"reason" validate:"required"`
}

type dosageWire struct {
	Strength     string   `json:"strength" validate:"required"`
	Route        string   `json:"route" validate:"required,oneof=oral topical inhalation injection other"`
	Frequency    string   `json:"frequency" validate:"required"`
	DurationDays *float64 `json:"durationDays" validate:"required,gte=0"`
	Instructions string   `json:"instructions"`
}

func (w *treatmentPlanWire) normalize() {
	for i := range w.Tests {
		w.Tests[i].Priority = strings.ToLower(strings.TrimSpace(w.Tests[i].Priority))
	}
}

func (w *symptomAnalysisWire) normalize() {
	w.InfectionRisk = strings.ToLower(strings.TrimSpace(w.InfectionRisk))
}

func (w *suggestionWire) normalize() {
	for i := range w.Items {
		if d := w.Items[i].Dosage; d != nil {
			d.Route = strings.ToLower(strings.TrimSpace(d.Route))
		}
	}
}

func (w *treatmentPlanWire) plan() *TreatmentPlan {
	p := &TreatmentPlan{
		DiagnosisSuggestion:    w.DiagnosisSuggestion,
		Tests:                  make([]TreatmentTest, 0, len(w.Tests)),
		Medicines:              make([]TreatmentMedicine, 0, len(w.Medicines)),
		Consultation:           Consultation{Type: w.Consultation.Type, Cost: *w.Consultation.Cost},
		TotalCost:              *w.TotalCost,
		RemainingBudget:        *w.RemainingBudget,
		FollowUpRecommendation: w.FollowUpRecommendation,
	}
	for _, t := range w.Tests {
		p.Tests = append(p.Tests, TreatmentTest{
			Name:      t.Name,
			Cost:      *t.Cost,
			Lab:       t.Lab,
			Priority:  t.Priority,
			WhyNeeded: t.WhyNeeded,
		})
	}
	for _, m := range w.Medicines {
		med := TreatmentMedicine{
			GenericName:  m.GenericName,
			BrandOptions: make([]BrandOption, 0, len(m.BrandOptions)),
			Dosage:       m.Dosage,
			Frequency:    m.Frequency,
			Duration:     m.Duration,
		}
		for _, b := range m.BrandOptions {
			med.BrandOptions = append(med.BrandOptions, BrandOption{Name: b.Name, Price: *b.Price})
		}
		p.Medicines = append(p.Medicines, med)
	}
	return p
}

func (w *symptomAnalysisWire) analysis() *SymptomAnalysis {
	return &SymptomAnalysis{
		Notes:         w.Notes,
		InfectionRisk: w.InfectionRisk,
		Advice:        append([]string{}, w.Advice...),
	}
}

func (w *suggestionWire) recommendation() *recommend.Recommendation {
	rec := &recommend.Recommendation{
		Diagnosis: w.Diagnosis,
		Items:     make([]recommend.Item, 0, len(w.Items)),
		Warnings:  append([]string{}, w.Warnings...),
	}
	for _, it := range w.Items {
		rec.Items = append(rec.Items, recommend.Item{
			Medicine: it.Medicine,
			Dosage: recommend.Dosage{
				Strength:     it.Dosage.Strength,
				Route:        recommend.Route(it.Dosage.Route),
				Frequency:    it.Dosage.Frequency,
				DurationDays: int(math.Round(*it.Dosage.DurationDays)),
				Instructions: it.Dosage.Instructions,
			},
			Reason: it.Reason,
		})
	}
	return rec
}

type normalizer interface {
	normalize()
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeStructured parses model text into dst and validates it against the
// struct's schema tags.
func decodeStructured(v *validator.Validate, text string, dst normalizer) error {
	raw := extractJSON(text)
	if raw == "" {
		return &ParseError{Reason: "empty response"}
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return &ParseError{Reason: "invalid JSON", Err: err}
	}
	dst.normalize()

	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ParseError{Reason: "schema validation failed", Err: err}
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fieldPath(fe)+": "+fe.Tag())
		}
		return &ParseError{Reason: "schema validation failed", Fields: fields}
	}
	return nil
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// extractJSON strips markdown code fences the model sometimes wraps JSON in.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") && strings.HasSuffix(text, "```") && len(text) >= 6 {
		text = strings.TrimSuffix(text[3:], "```")
		text = strings.TrimPrefix(text, "json")
		return strings.TrimSpace(text)
	}
	return text
}
