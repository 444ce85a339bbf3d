// Package prescription holds the doctor's working prescription: manual
// items, items applied from rule or AI suggestions, and allergy checks.
// Every operation returns a new Prescription and leaves the receiver as is.
package prescription

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Skufu/medify/internal/recommend"
)

var (
	ErrInvalidItem  = errors.New("invalid prescription item")
	ErrItemNotFound = errors.New("prescription item not found")
)

type RxItem struct {
	ID       uuid.UUID        `json:"id"`
	Medicine string           `json:"medicine"`
	Dosage   recommend.Dosage `json:"dosage"`
}

type Prescription struct {
	ID        uuid.UUID `json:"id"`
	PatientID string    `json:"patientId,omitempty"`
	Diagnosis string    `json:"diagnosis,omitempty"`
	Items     []RxItem  `json:"items"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of an item or prescription.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return "invalid prescription: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidItem }

type itemInput struct {
	Medicine     string `json:"medicine" validate:"required"`
	Route        string `json:"route" validate:"required,oneof=oral topical inhalation injection other"`
	Frequency    string `json:"frequency" validate:"required"`
	DurationDays int    `json:"durationDays" validate:"gte=1"`
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	return v
}()

var messages = map[string]string{
	"required": "is required",
	"oneof":    "must be one of oral, topical, inhalation, injection, other",
	"gte":      "must be at least 1 day",
}

// ValidateItem checks a medicine and dosage the way the prescription form
// does: medicine and frequency are required and the course lasts at least a day.
func ValidateItem(medicine string, d recommend.Dosage) error {
	return validateItem("", medicine, d)
}

func validateItem(prefix, medicine string, d recommend.Dosage) error {
	in := itemInput{
		Medicine:     strings.TrimSpace(medicine),
		Route:        string(d.Route),
		Frequency:    strings.TrimSpace(d.Frequency),
		DurationDays: d.DurationDays,
	}

	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		field := fe.Field()
		if field != "medicine" {
			field = "dosage." + field
		}
		out.Errors = append(out.Errors, FieldError{Field: prefix + field, Message: messages[fe.Tag()]})
	}
	return out
}

func New(patientID, diagnosis, notes string) Prescription {
	return Prescription{
		ID:        uuid.New(),
		PatientID: strings.TrimSpace(patientID),
		Diagnosis: strings.TrimSpace(diagnosis),
		Items:     []RxItem{},
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	}
}

// FromRecommendation starts a prescription from a rule or AI recommendation.
// The default "uncertain" diagnosis is not carried over.
func FromRecommendation(patientID string, rec recommend.Recommendation) (Prescription, error) {
	diagnosis := rec.Diagnosis
	if diagnosis == recommend.DefaultDiagnosis {
		diagnosis = ""
	}

	p := New(patientID, diagnosis, "")
	for _, item := range rec.Items {
		var err error
		if p, err = p.ApplySuggestion(item); err != nil {
			return Prescription{}, err
		}
	}
	return p, nil
}

func (p Prescription) withItems(items []RxItem) Prescription {
	p.Items = items
	return p
}

func (p Prescription) cloneItems(extra int) []RxItem {
	items := make([]RxItem, 0, len(p.Items)+extra)
	return append(items, p.Items...)
}

func (p Prescription) AddItem(medicine string, d recommend.Dosage) (Prescription, error) {
	if err := ValidateItem(medicine, d); err != nil {
		return p, err
	}

	items := p.cloneItems(1)
	items = append(items, RxItem{ID: uuid.New(), Medicine: strings.TrimSpace(medicine), Dosage: d})
	return p.withItems(items), nil
}

// ApplySuggestion adds a suggested medicine with a fresh item id.
func (p Prescription) ApplySuggestion(s recommend.Item) (Prescription, error) {
	return p.AddItem(s.Medicine, s.Dosage)
}

func (p Prescription) UpdateItem(item RxItem) (Prescription, error) {
	if err := ValidateItem(item.Medicine, item.Dosage); err != nil {
		return p, err
	}

	items := p.cloneItems(0)
	for i := range items {
		if items[i].ID == item.ID {
			item.Medicine = strings.TrimSpace(item.Medicine)
			items[i] = item
			return p.withItems(items), nil
		}
	}
	return p, fmt.Errorf("%w: %s", ErrItemNotFound, item.ID)
}

func (p Prescription) RemoveItem(id uuid.UUID) (Prescription, error) {
	items := make([]RxItem, 0, len(p.Items))
	found := false
	for _, it := range p.Items {
		if it.ID == id {
			found = true
			continue
		}
		items = append(items, it)
	}
	if !found {
		return p, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return p.withItems(items), nil
}

// Validate checks every item and reports all failures with indexed paths.
func (p Prescription) Validate() error {
	out := &ValidationError{}
	for i, it := range p.Items {
		err := validateItem(fmt.Sprintf("items[%d].", i), it.Medicine, it.Dosage)
		if err == nil {
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		out.Errors = append(out.Errors, verr.Errors...)
	}
	if len(out.Errors) > 0 {
		return out
	}
	return nil
}
