package labor

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// TestTyp is the kind of test a laboratory offers. The set is closed.
type TestTyp string

// The supported test types with their single-letter wire codes.
const (
	Antikoerper TestTyp = "A"
	Blut        TestTyp = "B"
	DNS         TestTyp = "D"
)

var testTypNames = map[TestTyp]string{
	Antikoerper: "Antikoerper",
	Blut:        "Blut",
	DNS:         "DNS",
}

// lookup resolves both codes and symbolic names, lower-cased. Built once.
var testTypLookup = func() map[string]TestTyp {
	m := make(map[string]TestTyp, 2*len(testTypNames))
	for typ, name := range testTypNames {
		m[strings.ToLower(string(typ))] = typ
		m[strings.ToLower(name)] = typ
	}
	return m
}()

// BuildTestTyp resolves a test type from its code or symbolic name,
// case-insensitively. Unknown input yields ok == false.
func BuildTestTyp(value string) (TestTyp, bool) {
	typ, ok := testTypLookup[strings.ToLower(value)]
	return typ, ok
}

// Valid reports whether the test type is one of the defined codes.
func (t TestTyp) Valid() bool {
	_, ok := testTypNames[t]
	return ok
}

func (t TestTyp) String() string {
	if name, ok := testTypNames[t]; ok {
		return name
	}
	return string(t)
}

// UnmarshalJSON accepts codes and symbolic names, case-insensitively.
func (t *TestTyp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	typ, ok := BuildTestTyp(s)
	if !ok {
		return fmt.Errorf("unknown test type %q", s)
	}
	*t = typ
	return nil
}
