package ecs

import (
	"iter"

	"github.com/kelindar/bitmap"
)

// GroupSet is a set of groups, the unit engines declare and query over.
type GroupSet struct {
	bits bitmap.Bitmap
}

// NewGroupSet returns a set holding groups.
func NewGroupSet(groups ...GroupID) GroupSet {
	var s GroupSet
	for _, g := range groups {
		s.Add(g)
	}
	return s
}

// Add inserts g.
func (s *GroupSet) Add(g GroupID) {
	s.bits.Set(uint32(g))
}

// Contains reports whether g is in the set.
func (s GroupSet) Contains(g GroupID) bool {
	return s.bits.Contains(uint32(g))
}

// Len returns the number of groups in the set.
func (s GroupSet) Len() int {
	return s.bits.Count()
}

// Union returns the groups in s or other.
func (s GroupSet) Union(other GroupSet) GroupSet {
	out := GroupSet{bits: s.bits.Clone(nil)}
	out.bits.Or(other.bits)
	return out
}

// Overlaps reports whether s and other share a group.
func (s GroupSet) Overlaps(other GroupSet) bool {
	intersect := s.bits.Clone(nil)
	intersect.And(other.bits)
	return intersect.Count() > 0
}

// All yields the groups in ascending order.
func (s GroupSet) All() iter.Seq[GroupID] {
	return func(yield func(GroupID) bool) {
		groups := make([]GroupID, 0, s.bits.Count())
		s.bits.Range(func(x uint32) {
			groups = append(groups, GroupID(x))
		})
		for _, g := range groups {
			if !yield(g) {
				return
			}
		}
	}
}
