package item

import "sort"

// Set collects applications keyed by their canonical location.
// Adding a record for a location already present keeps the first one.
type Set struct {
	apps  map[string]Application
	order []string
}

// NewSet creates an empty application set.
func NewSet() *Set {
	return &Set{apps: make(map[string]Application)}
}

// Add inserts a unless an application with the same location exists.
// Returns true if the set grew.
func (s *Set) Add(a Application) bool {
	id := a.ID()
	if _, ok := s.apps[id]; ok {
		return false
	}
	s.apps[id] = a
	s.order = append(s.order, id)
	return true
}

// Contains reports whether an application with a's location is present.
func (s *Set) Contains(a Application) bool {
	_, ok := s.apps[a.ID()]
	return ok
}

// Len returns the number of distinct applications.
func (s *Set) Len() int {
	return len(s.apps)
}

// Slice returns the applications sorted case-insensitively by name,
// ties broken by location.
func (s *Set) Slice() []Application {
	out := make([]Application, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.apps[id])
	}
	col := NameCollator()
	sort.SliceStable(out, func(i, j int) bool {
		if c := col.CompareString(out[i].Name, out[j].Name); c != 0 {
			return c < 0
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}
