package ecs

import (
	"iter"
	"slices"
)

// referenceSet is the reverse map of a single group: the reference of each live row, indexed by
// EntityID. Empty rows hold InvalidReference.
type referenceSet struct {
	refs []EntityReference
	live int
}

const referenceSetCapacity = 16

func newReferenceSet(capacity int) *referenceSet {
	capacity = max(capacity, referenceSetCapacity)
	return &referenceSet{refs: make([]EntityReference, 0, capacity)}
}

// get returns the reference stored at a row and whether the row is live.
func (s *referenceSet) get(row EntityID) (EntityReference, bool) {
	if int(row) >= len(s.refs) {
		return InvalidReference, false
	}
	ref := s.refs[row]
	return ref, ref.IsValid()
}

// set stores a valid ref at row, growing the backing slice with tombstones if needed. An existing entry is
// overwritten.
func (s *referenceSet) set(row EntityID, ref EntityReference) {
	if n := int(row) + 1; n > len(s.refs) {
		old := len(s.refs)
		s.refs = slices.Grow(s.refs, n-old)[:n]
		clear(s.refs[old:])
	}
	if !s.refs[row].IsValid() {
		s.live++
	}
	s.refs[row] = ref
}

// remove tombstones a row. Returns false if the row wasn't live.
func (s *referenceSet) remove(row EntityID) bool {
	if int(row) >= len(s.refs) || !s.refs[row].IsValid() {
		return false
	}
	s.refs[row] = InvalidReference
	s.live--

	// Trim trailing tombstones so the slice tracks the group's row count.
	n := len(s.refs)
	for n > 0 && !s.refs[n-1].IsValid() {
		n--
	}
	s.refs = s.refs[:n]
	return true
}

// len returns the number of live rows.
func (s *referenceSet) len() int {
	return s.live
}

func (s *referenceSet) reserve(n int) {
	s.refs = slices.Grow(s.refs, n)
}

// all yields the live rows in ascending row order.
func (s *referenceSet) all() iter.Seq2[EntityID, EntityReference] {
	return func(yield func(EntityID, EntityReference) bool) {
		for i, ref := range s.refs {
			if !ref.IsValid() {
				continue
			}
			if !yield(EntityID(i), ref) { //nolint:gosec // bounded by the uint32 row space
				return
			}
		}
	}
}
