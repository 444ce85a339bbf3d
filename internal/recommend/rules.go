package recommend

import "strings"

// Rule is one row of the keyword rule table. Match receives normalized
// symptom text. When Diagnose is nil the rule overwrites the running
// diagnosis with Label; otherwise Diagnose composes the new diagnosis from
// the one left by earlier rules.
type Rule struct {
	ID       string
	Label    string
	Match    func(text string) bool
	Diagnose func(current string) string
	Items    []Item
}

func (r Rule) apply(text string, st evaluation) evaluation {
	if !r.Match(text) {
		return st
	}

	next := evaluation{diagnosis: r.Label}
	if r.Diagnose != nil {
		next.diagnosis = r.Diagnose(st.diagnosis)
	}
	// Item holds only value fields, so append copies and the table stays untouched.
	next.items = make([]Item, 0, len(st.items)+len(r.Items))
	next.items = append(next.items, st.items...)
	next.items = append(next.items, r.Items...)
	return next
}

var ruleTable = []Rule{
	{
		ID:    "viral-fever",
		Label: "Viral Fever",
		Match: allOf(has("fever"), anyOf(has("headache"), has("body ache"))),
		Items: []Item{
			{
				Medicine: "Paracetamol",
				Dosage: Dosage{
					Strength:     "650 mg",
					Route:        RouteOral,
					Frequency:    "TID after food",
					DurationDays: 3,
					Instructions: "If fever persists",
				},
				Reason: "For fever and pain relief.",
			},
		},
	},
	{
		ID:    "pharyngitis",
		Label: "Pharyngitis",
		Match: anyOf(has("sore throat"), has("throat pain")),
		Diagnose: func(current string) string {
			if strings.HasPrefix(current, "Viral") {
				return "Viral Pharyngitis"
			}
			return "Pharyngitis"
		},
		Items: []Item{
			{
				Medicine: "Ibuprofen",
				Dosage: Dosage{
					Strength:     "400 mg",
					Route:        RouteOral,
					Frequency:    "BD after food",
					DurationDays: 3,
					Instructions: "For throat pain",
				},
				Reason: "Anti-inflammatory for throat pain.",
			},
		},
	},
	{
		ID:    "dry-cough",
		Label: "Dry Cough / Allergic Bronchitis",
		Match: allOf(has("cough"), has("dry")),
		Items: []Item{
			{
				Medicine: "Levocetirizine",
				Dosage: Dosage{
					Strength:     "5 mg",
					Route:        RouteOral,
					Frequency:    "OD at night",
					DurationDays: 5,
				},
				Reason: "Antihistamine for allergic cough.",
			},
		},
	},
	{
		ID:    "gastroenteritis",
		Label: "Acute Gastroenteritis",
		Match: anyOf(has("loose motion"), has("diarrhea")),
		Items: []Item{
			{
				Medicine: "Oral Rehydration Salts (ORS)",
				Dosage: Dosage{
					Strength:     "sachet",
					Route:        RouteOral,
					Frequency:    "As needed",
					DurationDays: 2,
					Instructions: "Mix in 1L water and sip frequently",
				},
				Reason: "To prevent dehydration.",
			},
			{
				Medicine: "Zinc Sulfate",
				Dosage: Dosage{
					Strength:     "20 mg",
					Route:        RouteOral,
					Frequency:    "OD",
					DurationDays: 14,
				},
				Reason: "To reduce duration and severity of diarrhea.",
			},
		},
	},
}

// Rules returns a copy of the rule table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(ruleTable))
	for i, r := range ruleTable {
		r.Items = append([]Item(nil), r.Items...)
		out[i] = r
	}
	return out
}

func has(phrase string) func(string) bool {
	return func(text string) bool {
		return strings.Contains(text, phrase)
	}
}

func allOf(preds ...func(string) bool) func(string) bool {
	return func(text string) bool {
		for _, p := range preds {
			if !p(text) {
				return false
			}
		}
		return true
	}
}

func anyOf(preds ...func(string) bool) func(string) bool {
	return func(text string) bool {
		for _, p := range preds {
			if p(text) {
				return true
			}
		}
		return false
	}
}
