package rule

// Set is an ordered collection of distinct rules. Order is generation order
// and is preserved through filtering, so earlier rules win deterministic
// tie-breaks downstream.
type Set struct {
	rules []Rule
	index map[string]int
}

// NewSet builds a set from zero or more rules, deduplicating by canonical key.
func NewSet(rules ...Rule) *Set {
	s := &Set{index: make(map[string]int, len(rules))}
	for _, r := range rules {
		s.Add(r)
	}
	return s
}

// Add appends a rule unless an equal rule is already present. Reports
// whether the rule was added.
func (s *Set) Add(r Rule) bool {
	key := r.Key()
	if _, dup := s.index[key]; dup {
		return false
	}
	s.index[key] = len(s.rules)
	s.rules = append(s.rules, r)
	return true
}

// Contains reports whether an equal rule is present
func (s *Set) Contains(r Rule) bool {
	_, ok := s.index[r.Key()]
	return ok
}

// Len returns the number of rules
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// IsEmpty reports whether the set holds no rules
func (s *Set) IsEmpty() bool {
	return s.Len() == 0
}

// Rules returns the rules in generation order. The slice is a copy.
func (s *Set) Rules() []Rule {
	if s == nil {
		return nil
	}
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// At returns the rule at position i
func (s *Set) At(i int) Rule {
	return s.rules[i]
}

// Keys returns the canonical keys in generation order
func (s *Set) Keys() []string {
	keys := make([]string, len(s.rules))
	for i, r := range s.rules {
		keys[i] = r.Key()
	}
	return keys
}

// Keep returns a new set containing only the rules at the given positions,
// preserving relative order. Filters remove rules; they never reorder.
func (s *Set) Keep(positions []int) *Set {
	kept := NewSet()
	for _, i := range positions {
		kept.Add(s.rules[i])
	}
	return kept
}
