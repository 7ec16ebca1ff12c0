package labor

import "regexp"

// Violation is a single broken field rule. The key is stable and suitable
// for client-side message lookup, the message is the english default.
type Violation struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

var plzPattern = regexp.MustCompile(`^\d{5}$`)

const faxMaxLen = 15

// Validate checks all field rules of the laboratory and returns every
// violation found. It never short-circuits, so the result is complete
// and deterministic for a given input. An empty result means valid.
func Validate(l Labor) []Violation {
	var violations []Violation

	if l.Fax == "" {
		violations = append(violations, Violation{
			Key:     "labor.fax.notEmpty",
			Message: "Fax is required.",
		})
	}
	if len(l.Fax) > faxMaxLen {
		violations = append(violations, Violation{
			Key:     "labor.fax.pattern",
			Message: "Max 15 digits are allowed.",
		})
	}
	if l.Adresse.Plz == "" {
		violations = append(violations, Violation{
			Key:     "adresse.plz.notEmpty",
			Message: "ZIP code is required.",
		})
	}
	if !plzPattern.MatchString(l.Adresse.Plz) {
		violations = append(violations, Violation{
			Key:     "adresse.plz.pattern",
			Message: "ZIP code does not consist of 5 digits.",
		})
	}
	if l.Adresse.Ort == "" {
		violations = append(violations, Violation{
			Key:     "adresse.ort.notEmpty",
			Message: "Location is required.",
		})
	}

	return violations
}
