package genai

// Response schemas in the Gemini OpenAPI subset. Field names match the JSON
// the decoders in plans.go expect.

func object(props map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "OBJECT", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func array(description string, items map[string]any) map[string]any {
	return map[string]any{"type": "ARRAY", "description": description, "items": items}
}

func str(description string) map[string]any {
	return map[string]any{"type": "STRING", "description": description}
}

func enum(description string, values ...string) map[string]any {
	return map[string]any{"type": "STRING", "description": description, "enum": values}
}

func number(description string) map[string]any {
	return map[string]any{"type": "NUMBER", "description": description}
}

var treatmentPlanSchema = object(map[string]any{
	"diagnosis_suggestion": str("A brief, likely diagnosis based on the symptoms. Preface with 'Based on the symptoms, this could be...'. Keep it non-definitive."),
	"tests": array("List of recommended diagnostic tests.", object(map[string]any{
		"name":       str("Name of the test."),
		"cost":       number("Estimated cost in INR."),
		"lab":        str("Example of a common lab in India, e.g., 'Dr. Lal PathLabs'."),
		"priority":   enum("Priority of the test.", "high", "medium", "low"),
		"why_needed": str("Brief justification for the test."),
	}, "name", "cost", "lab", "priority", "why_needed")),
	"medicines": array("List of recommended medicines.", object(map[string]any{
		"generic_name": str("Generic name of the medicine."),
		"brand_options": array("A few brand name options with prices.", object(map[string]any{
			"name":  str("Brand name or 'Generic'."),
			"price": number("Estimated price for the full course in INR."),
		}, "name", "price")),
		"dosage":    str("e.g., '500mg'"),
		"frequency": str("e.g., 'Twice a day after meals'"),
		"duration":  str("e.g., '5 days'"),
	}, "generic_name", "brand_options", "dosage", "frequency", "duration")),
	"consultation": object(map[string]any{
		"type": str("e.g., 'General Physician', 'Specialist', 'Teleconsultation'"),
		"cost": number("Estimated cost in INR."),
	}, "type", "cost"),
	"total_cost":               number("The calculated total cost of all recommended items."),
	"remaining_budget":         number("The user's budget minus the total cost."),
	"follow_up_recommendation": str("A crucial follow-up warning: what to do if symptoms do not improve and the likely cost of next steps."),
}, "diagnosis_suggestion", "tests", "medicines", "consultation", "total_cost", "remaining_budget", "follow_up_recommendation")

var symptomAnalysisSchema = object(map[string]any{
	"notes":          str("Detailed, objective observations from the image: color, texture, shape, signs of inflammation or healing."),
	"infection_risk": enum("An estimated risk of infection.", "low", "medium", "high"),
	"advice":         array("A list of 2-3 general, non-prescriptive care suggestions.", str("A care suggestion.")),
}, "notes", "infection_risk", "advice")

var prescriptionSchema = object(map[string]any{
	"diagnosis": str("A likely diagnosis based on the symptoms."),
	"items": array("List of recommended medications.", object(map[string]any{
		"medicine": str("Generic name of the medicine."),
		"dosage": object(map[string]any{
			"strength":     str("e.g., '500 mg'"),
			"route":        enum("Administration route.", "oral", "topical", "inhalation", "injection", "other"),
			"frequency":    str("e.g., 'Once daily', 'TID'"),
			"durationDays": number("Duration in days."),
			"instructions": str("e.g., 'after food'"),
		}, "strength", "route", "frequency", "durationDays"),
		"reason": str("Brief justification for this medicine."),
	}, "medicine", "dosage", "reason")),
	"warnings": array("List of critical warnings or red flags for the doctor's attention.", str("A warning.")),
}, "diagnosis", "items", "warnings")
