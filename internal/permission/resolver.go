package permission

import "sort"

// Set is the effective permission set of a role.
type Set struct {
	all    bool
	grants []Triple
	names  []string
}

// NewSet builds a Set from granted permission names. Names that do not parse
// are kept in Names but never match anything.
func NewSet(names []string) Set {
	s := Set{names: make([]string, 0, len(names))}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		s.names = append(s.names, n)

		t, err := Parse(n)
		if err != nil {
			continue
		}
		if t.IsAll() {
			s.all = true
		}
		s.grants = append(s.grants, t)
	}
	sort.Strings(s.names)
	return s
}

// HasWildcard reports whether the set holds *:*:*.
func (s Set) HasWildcard() bool { return s.all }

// Names returns the granted names, sorted.
func (s Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s Set) Len() int { return len(s.names) }

// IsGranted answers whether target is granted. A *:*:* holder is granted every
// query, including names that do not parse.
func (s Set) IsGranted(target string) bool {
	if s.all {
		return true
	}
	t, err := Parse(target)
	if err != nil {
		return false
	}
	return s.IsGrantedTriple(t)
}

func (s Set) IsGrantedTriple(target Triple) bool {
	if s.all {
		return true
	}
	for _, g := range s.grants {
		if g.Matches(target) {
			return true
		}
	}
	return false
}

// IsGranted is a convenience for one-off checks against a raw list of names.
func IsGranted(target string, granted []string) bool {
	return NewSet(granted).IsGranted(target)
}
