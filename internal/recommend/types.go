package recommend

// Route is the administration route of a dosage.
type Route string

const (
	RouteOral       Route = "oral"
	RouteTopical    Route = "topical"
	RouteInhalation Route = "inhalation"
	RouteInjection  Route = "injection"
	RouteOther      Route = "other"
)

var routes = []Route{RouteOral, RouteTopical, RouteInhalation, RouteInjection, RouteOther}

// Routes returns every supported route in display order.
func Routes() []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}

func (r Route) Valid() bool {
	for _, known := range routes {
		if r == known {
			return true
		}
	}
	return false
}

type Dosage struct {
	Strength     string `json:"strength"`
	Route        Route  `json:"route"`
	Frequency    string `json:"frequency"`
	DurationDays int    `json:"durationDays"`
	Instructions string `json:"instructions,omitempty"`
}

type Item struct {
	Medicine string `json:"medicine"`
	Dosage   Dosage `json:"dosage"`
	Reason   string `json:"reason"`
}

// Recommendation is the result of one evaluation. Items and Warnings are
// never nil so they encode as empty JSON arrays.
type Recommendation struct {
	Diagnosis string   `json:"diagnosis"`
	Items     []Item   `json:"items"`
	Warnings  []string `json:"warnings"`
}

// Query is the input to one evaluation. Age and Allergies are carried for
// callers but are not consulted by the rule table.
type Query struct {
	Symptoms  string   `json:"symptoms"`
	Age       *int     `json:"age,omitempty"`
	Allergies []string `json:"allergies,omitempty"`
}

// Outcome labels how an evaluation ended.
type Outcome string

const (
	OutcomeUrgent      Outcome = "urgent"
	OutcomeMatched     Outcome = "matched"
	OutcomeNonSpecific Outcome = "nonspecific"
)

func (r Recommendation) Outcome() Outcome {
	if len(r.Items) > 0 {
		return OutcomeMatched
	}
	for _, w := range r.Warnings {
		if w == NonSpecificWarning {
			return OutcomeNonSpecific
		}
	}
	if len(r.Warnings) > 0 {
		return OutcomeUrgent
	}
	return OutcomeNonSpecific
}
