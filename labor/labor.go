// Package labor holds the laboratory aggregate and its pure domain logic:
// the TestTyp enumeration, field validation and the partial-update applier.
package labor

import (
	"time"

	"github.com/google/uuid"
)

// Adresse is a german postal address.
type Adresse struct {
	Strasse    string `json:"strasse"`
	Hausnummer string `json:"hausnummer"`
	Plz        string `json:"plz"`
	Ort        string `json:"ort"`
}

// Gesundheitsamt is the public health office a laboratory reports to.
type Gesundheitsamt struct {
	Bundesland string  `json:"bundesland"`
	Landkreis  string  `json:"landkreis"`
	Adresse    Adresse `json:"adresse"`
}

// UserSpec is the account descriptor a client may embed when creating a
// laboratory. It is consumed during create and never persisted or returned.
type UserSpec struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Labor is the laboratory aggregate. ID and Version travel out of band:
// the ID in the Location header and self links, the version in the ETag.
type Labor struct {
	ID      uuid.UUID `json:"-"`
	Version int       `json:"-"`

	Name                       string         `json:"name"`
	Adresse                    Adresse        `json:"adresse"`
	Telefonnummer              string         `json:"telefonnummer"`
	Fax                        string         `json:"fax"`
	LaborTests                 []TestTyp      `json:"laborTests"`
	TestetAufCorona            bool           `json:"testetAufCorona"`
	ZustaendigesGesundheitsamt Gesundheitsamt `json:"zustaendigesGesundheitsamt"`

	// Username is the owning account, assigned on create and immutable.
	Username string `json:"username,omitempty"`

	Erzeugt      time.Time `json:"-"`
	Aktualisiert time.Time `json:"-"`

	// User is only accepted on create.
	User *UserSpec `json:"user,omitempty"`
}

// Clone returns a deep copy of the laboratory.
func (l Labor) Clone() Labor {
	out := l
	if l.LaborTests != nil {
		out.LaborTests = make([]TestTyp, len(l.LaborTests))
		copy(out.LaborTests, l.LaborTests)
	}
	if l.User != nil {
		user := *l.User
		out.User = &user
	}
	return out
}

// HasTest reports whether typ is in the laboratory's test list.
func (l Labor) HasTest(typ TestTyp) bool {
	for _, t := range l.LaborTests {
		if t == typ {
			return true
		}
	}
	return false
}
