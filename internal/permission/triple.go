package permission

import (
	"errors"
	"fmt"
	"strings"
)

// Wildcard matches any value in the segment it occupies.
const Wildcard = "*"

// All is the universal grant. A role holding it is granted everything.
const All = "*:*:*"

// Scope values accepted in the third segment.
const (
	ScopeOwn     = "own"
	ScopeLabel   = "label"
	ScopePartner = "partner"
	ScopeAny     = "any"
)

var ErrInvalidName = errors.New("invalid permission name")

var validScopes = map[string]bool{
	ScopeOwn:     true,
	ScopeLabel:   true,
	ScopePartner: true,
	ScopeAny:     true,
	Wildcard:     true,
}

// Segment is one part of a permission triple: either a literal or the wildcard.
type Segment struct {
	value string
}

func Literal(v string) Segment { return Segment{value: v} }

func Any() Segment { return Segment{value: Wildcard} }

func (s Segment) IsWildcard() bool { return s.value == Wildcard }

func (s Segment) String() string { return s.value }

// covers reports whether a granted segment s admits the requested segment t.
func (s Segment) covers(t Segment) bool {
	return s.IsWildcard() || s.value == t.value
}

// Triple is a parsed resource:action:scope permission.
type Triple struct {
	Resource Segment
	Action   Segment
	Scope    Segment
}

// Parse splits a permission name into its three segments. Every segment must be
// non-empty and free of whitespace, and the scope must be a known scope or "*".
func Parse(name string) (Triple, error) {
	parts := strings.Split(name, ":")
	if len(parts) != 3 {
		return Triple{}, fmt.Errorf("%w: %q must have exactly three segments", ErrInvalidName, name)
	}
	for i, p := range parts {
		if p == "" {
			return Triple{}, fmt.Errorf("%w: %q has an empty segment at position %d", ErrInvalidName, name, i+1)
		}
		if strings.ContainsAny(p, " \t\r\n") {
			return Triple{}, fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
		}
	}
	if !validScopes[parts[2]] {
		return Triple{}, fmt.Errorf("%w: %q has unknown scope %q", ErrInvalidName, name, parts[2])
	}
	return Triple{
		Resource: Literal(parts[0]),
		Action:   Literal(parts[1]),
		Scope:    Literal(parts[2]),
	}, nil
}

// MustParse is Parse for names known at compile time.
func MustParse(name string) Triple {
	t, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Triple) String() string {
	return t.Resource.String() + ":" + t.Action.String() + ":" + t.Scope.String()
}

// IsAll reports whether t is the universal wildcard.
func (t Triple) IsAll() bool {
	return t.Resource.IsWildcard() && t.Action.IsWildcard() && t.Scope.IsWildcard()
}

// Matches reports whether holding t grants target. Each segment of t must be a
// wildcard or equal to the corresponding target segment.
func (t Triple) Matches(target Triple) bool {
	return t.Resource.covers(target.Resource) &&
		t.Action.covers(target.Action) &&
		t.Scope.covers(target.Scope)
}
