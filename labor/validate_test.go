package labor

import "testing"

func validLabor() Labor {
	return Labor{
		Name: "Labor Nord",
		Adresse: Adresse{
			Strasse:    "Hauptstrasse",
			Hausnummer: "12",
			Plz:        "76133",
			Ort:        "Karlsruhe",
		},
		Telefonnummer: "0721 12345",
		Fax:           "0721 12346",
		LaborTests:    []TestTyp{Blut},
	}
}

func TestValidateOK(t *testing.T) {
	if violations := Validate(validLabor()); len(violations) != 0 {
		t.Fatalf("Expecting no violations, got %v", violations)
	}
}

func TestValidateAllRulesEvaluated(t *testing.T) {
	l := validLabor()
	l.Fax = ""
	l.Adresse.Plz = "1234"

	violations := Validate(l)
	if len(violations) != 2 {
		t.Fatalf("Expecting 2 violations, got %v", violations)
	}
	if violations[0].Key != "labor.fax.notEmpty" {
		t.Fatalf("Expecting %v got '%v'", "labor.fax.notEmpty", violations[0].Key)
	}
	if violations[1].Key != "adresse.plz.pattern" {
		t.Fatalf("Expecting %v got '%v'", "adresse.plz.pattern", violations[1].Key)
	}
}

func TestValidateViolations(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(*Labor)
		expected []string
	}{
		{
			"fax too long",
			func(l *Labor) { l.Fax = "0123456789012345" },
			[]string{"labor.fax.pattern"},
		},
		{
			"empty plz reports both rules",
			func(l *Labor) { l.Adresse.Plz = "" },
			[]string{"adresse.plz.notEmpty", "adresse.plz.pattern"},
		},
		{
			"plz with letters",
			func(l *Labor) { l.Adresse.Plz = "7613a" },
			[]string{"adresse.plz.pattern"},
		},
		{
			"empty ort",
			func(l *Labor) { l.Adresse.Ort = "" },
			[]string{"adresse.ort.notEmpty"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := validLabor()
			tc.mutate(&l)
			violations := Validate(l)
			if len(violations) != len(tc.expected) {
				t.Fatalf("Expecting %d violations, got %v", len(tc.expected), violations)
			}
			for i, key := range tc.expected {
				if violations[i].Key != key {
					t.Fatalf("Expecting %v got '%v'", key, violations[i].Key)
				}
			}
		})
	}
}
