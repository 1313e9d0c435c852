package sets

// Set is a simple generic hash set for comparable keys.
// Usage: s := sets.New[string](); if !s.Insert("a") {...}
type Set[T comparable] map[T]struct{}

// New creates a set pre-populated with the provided values.
func New[T comparable](vals ...T) Set[T] {
	s := make(Set[T], len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}
	return s
}

// Insert adds v and reports whether it was absent before the call.
func (s Set[T]) Insert(v T) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

// Len returns the number of members.
func (s Set[T]) Len() int { return len(s) }
