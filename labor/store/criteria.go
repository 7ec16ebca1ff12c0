package store

import "net/url"

// Criterion is a single search condition on a laboratory field, expressed
// as a regular expression so every store can translate it to its own
// matching primitive.
type Criterion struct {
	Field      string
	Expr       string
	IgnoreCase bool
}

// The searchable query keys.
const (
	FieldName          = "name"
	FieldPlz           = "plz"
	FieldOrt           = "ort"
	FieldTelefonnummer = "telefonnummer"
	FieldFax           = "fax"
)

// BuildCriterion turns one query parameter into a criterion. Unknown keys
// and parameters with anything but exactly one value yield nil.
func BuildCriterion(key string, values []string) *Criterion {
	if len(values) != 1 {
		return nil
	}
	value := values[0]
	switch key {
	case FieldName, FieldTelefonnummer, FieldFax:
		return &Criterion{Field: key, Expr: value, IgnoreCase: true}
	case FieldPlz:
		return &Criterion{Field: key, Expr: "^" + value}
	case FieldOrt:
		return &Criterion{Field: key, Expr: value, IgnoreCase: true}
	}
	return nil
}

// BuildCriteria turns the full query parameter map into a criteria list,
// one entry per key. Entries for unusable parameters are nil so callers
// can decide to fail closed.
func BuildCriteria(params url.Values) []*Criterion {
	criteria := make([]*Criterion, 0, len(params))
	for key, values := range params {
		criteria = append(criteria, BuildCriterion(key, values))
	}
	return criteria
}
