// Package recommend maps free-text symptoms to a diagnosis label, medicine
// suggestions and safety warnings using a static keyword rule table.
//
// Evaluation is a pure function of its Query:
//   - red-flag phrases short-circuit before any rule runs
//   - rules are folded in table order, threading the running diagnosis
//   - nothing is shared or mutated between calls
package recommend

import "strings"

const (
	DefaultDiagnosis   = "Uncertain. Clinical correlation advised."
	NonSpecificWarning = "Symptoms are non-specific. Please add medication manually based on clinical examination."

	CardiorespiratoryWarning = "URGENT: Chest pain or shortness of breath requires immediate medical attention. Go to ER."
	BleedingWarning          = "URGENT: Severe bleeding requires immediate medical attention."
)

type redFlag struct {
	phrases []string
	warning string
}

// Checked in order; the first group that matches ends classification.
var redFlags = []redFlag{
	{
		phrases: []string{"chest pain", "shortness of breath", "breathing difficulty"},
		warning: CardiorespiratoryWarning,
	},
	{
		phrases: []string{"severe bleeding", "uncontrolled bleeding"},
		warning: BleedingWarning,
	},
}

// evaluation is the state threaded through the rule fold.
type evaluation struct {
	diagnosis string
	items     []Item
}

func Normalize(symptoms string) string {
	return strings.ToLower(strings.TrimSpace(symptoms))
}

// Classify reports the urgent warning for the first red-flag group found in
// normalized text.
func Classify(text string) ([]string, bool) {
	for _, flag := range redFlags {
		for _, phrase := range flag.phrases {
			if strings.Contains(text, phrase) {
				return []string{flag.warning}, true
			}
		}
	}
	return nil, false
}

// Evaluate folds the rule table over normalized text and returns the final
// diagnosis with every matched item in rule order.
func Evaluate(text string) (string, []Item) {
	return evaluate(text, ruleTable)
}

func evaluate(text string, rules []Rule) (string, []Item) {
	st := evaluation{diagnosis: DefaultDiagnosis}
	for _, r := range rules {
		st = r.apply(text, st)
	}
	return st.diagnosis, st.items
}

// Aggregate builds the final Recommendation. A non-nil urgent result is
// returned as is.
func Aggregate(urgent *Recommendation, diagnosis string, items []Item) Recommendation {
	if urgent != nil {
		return *urgent
	}

	if len(items) == 0 {
		return Recommendation{
			Diagnosis: DefaultDiagnosis,
			Items:     []Item{},
			Warnings:  []string{NonSpecificWarning},
		}
	}

	return Recommendation{
		Diagnosis: diagnosis,
		Items:     append([]Item(nil), items...),
		Warnings:  []string{},
	}
}

// Recommend evaluates one query. It never fails: empty or unrecognised
// symptoms produce the non-specific result.
func Recommend(q Query) Recommendation {
	text := Normalize(q.Symptoms)

	if warnings, urgent := Classify(text); urgent {
		return Aggregate(&Recommendation{
			Diagnosis: DefaultDiagnosis,
			Items:     []Item{},
			Warnings:  warnings,
		}, "", nil)
	}

	diagnosis, items := Evaluate(text)
	return Aggregate(nil, diagnosis, items)
}
