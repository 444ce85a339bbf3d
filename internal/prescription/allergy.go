package prescription

import "strings"

type AllergyConflict struct {
	ItemID    string `json:"itemId"`
	Medicine  string `json:"medicine"`
	Allergy   string `json:"allergy"`
	DrugClass string `json:"drugClass,omitempty"`
}

var (
	nsaidClass         = []string{"ibuprofen", "diclofenac", "naproxen", "aspirin", "aceclofenac", "mefenamic", "ketorolac"}
	paracetamolClass   = []string{"paracetamol", "acetaminophen"}
	antihistamineClass = []string{"levocetirizine", "cetirizine", "fexofenadine", "loratadine", "chlorpheniramine", "diphenhydramine"}
	zincClass          = []string{"zinc"}
	orsClass           = []string{"oral rehydration", "ors"}
	penicillinClass    = []string{"penicillin", "amoxicillin", "ampicillin", "cloxacillin"}
	sulfonamideClass   = []string{"sulfamethoxazole", "sulfasalazine", "sulfadiazine", "cotrimoxazole", "co-trimoxazole"}

	drugClasses = map[string][]string{
		"nsaids":         nsaidClass,
		"paracetamol":    paracetamolClass,
		"antihistamines": antihistamineClass,
		"zinc":           zincClass,
		"ors":            orsClass,
		"penicillins":    penicillinClass,
		"sulfonamides":   sulfonamideClass,
	}

	// Words a patient or doctor writes for a whole class.
	classAliases = map[string]string{
		"nsaid":             "nsaids",
		"nsaids":            "nsaids",
		"anti-inflammatory": "nsaids",
		"painkillers":       "nsaids",
		"acetaminophen":     "paracetamol",
		"paracetamol":       "paracetamol",
		"antihistamine":     "antihistamines",
		"antihistamines":    "antihistamines",
		"zinc":              "zinc",
		"ors":               "ors",
		"penicillin":        "penicillins",
		"penicillins":       "penicillins",
		"sulfa":             "sulfonamides",
		"sulfa drugs":       "sulfonamides",
		"sulfonamide":       "sulfonamides",
		"sulfonamides":      "sulfonamides",
	}
)

// CheckAllergies flags every item whose medicine belongs to a drug class an
// allergy names, or whose name contains an unrecognised allergy verbatim.
// Each entry of allergies may itself hold a comma or semicolon separated list.
func CheckAllergies(items []RxItem, allergies []string) []AllergyConflict {
	conflicts := []AllergyConflict{}
	tokens := normalizeAllergies(allergies)
	if len(tokens) == 0 {
		return conflicts
	}

	for _, item := range items {
		med := strings.ToLower(item.Medicine)
		for _, allergy := range tokens {
			class := classOf(allergy)
			var matched bool
			if class != "" {
				matched = hasClassToken(med, drugClasses[class])
			} else {
				matched = strings.Contains(med, allergy)
			}
			if !matched {
				continue
			}
			conflicts = append(conflicts, AllergyConflict{
				ItemID:    item.ID.String(),
				Medicine:  item.Medicine,
				Allergy:   allergy,
				DrugClass: class,
			})
			break
		}
	}
	return conflicts
}

// classOf maps an allergy to its drug class, either by a class word or by a
// named member drug ("ibuprofen" implies every NSAID).
func classOf(allergy string) string {
	if class, ok := classAliases[allergy]; ok {
		return class
	}
	for class, drugs := range drugClasses {
		if class == "ors" || class == "zinc" {
			continue
		}
		for _, drug := range drugs {
			if strings.Contains(allergy, drug) {
				return class
			}
		}
	}
	return ""
}

func normalizeAllergies(values []string) []string {
	out := []string{}
	for _, v := range values {
		out = append(out, normalizeList(v)...)
	}
	return out
}

func normalizeList(text string) []string {
	out := []string{}
	for _, t := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ',' || r == ';'
	}) {
		trimmed := strings.TrimSpace(t)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// hasClassToken reports whether a medicine name mentions any drug of a class.
// "ors" only matches as a separate word so that names like "Decongestors"
// stay clear.
func hasClassToken(medicine string, class []string) bool {
	for _, drug := range class {
		if drug == "ors" {
			if hasWord(medicine, drug) {
				return true
			}
			continue
		}
		if strings.Contains(medicine, drug) {
			return true
		}
	}
	return false
}

func hasWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}
