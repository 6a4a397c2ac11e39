package ecs

import (
	"math"
	"slices"

	"github.com/argus-labs/gecs/pkg/assert"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// referenceMapElement is a slot of the forward array. A live slot holds the entity's current
// location. A free slot holds the index of the next free slot in egid.EntityID.
type referenceMapElement struct {
	egid    EGID
	version uint32
}

// ReferenceMap translates stable entity references to their current location and back.
//
// Forward lookups go through a dense array indexed by EntityReference.UniqueID - 1. Removed slots are
// recycled through an implicit free list threaded through the slots themselves, and their version
// is bumped so references handed out before the removal stop resolving. Reverse lookups go through
// one referenceSet per group, created the first time an entity is placed in that group.
//
// ReferenceMap is not safe for concurrent mutation. Concurrent Resolve and ReferenceOf calls are
// safe while nothing mutates the map.
type ReferenceMap struct {
	elements  []referenceMapElement
	nextIndex uint32 // Head of the free list; equals len(elements) when the list is empty
	reverse   map[GroupID]*referenceSet
	live      int

	strict bool
	logger zerolog.Logger
}

// NewReferenceMap creates an empty reference map. In strict mode a reverse map desync is returned
// as ErrInvariantViolation, otherwise it is logged and ignored.
func NewReferenceMap(logger zerolog.Logger, strict bool) *ReferenceMap {
	return &ReferenceMap{
		elements:  make([]referenceMapElement, 0),
		nextIndex: 0,
		reverse:   make(map[GroupID]*referenceSet),
		strict:    strict,
		logger:    logger,
	}
}

// Create hands out a reference for an entity placed at egid. Free slots are reused before the
// array grows.
func (m *ReferenceMap) Create(egid EGID) (EntityReference, error) {
	var ref EntityReference
	if int(m.nextIndex) < len(m.elements) {
		index := m.nextIndex
		element := &m.elements[index]
		m.nextIndex = uint32(element.egid.EntityID)
		element.egid = egid
		ref = referenceAt(index, element.version)
	} else {
		// UniqueIDs are offset by one and must fit in uint32.
		if uint64(len(m.elements)) >= math.MaxUint32 {
			return InvalidReference, eris.Wrapf(ErrReferencesExhausted, "creating entity at %s", egid)
		}
		index := uint32(len(m.elements))
		m.elements = append(m.elements, referenceMapElement{egid: egid, version: 0})
		m.nextIndex = uint32(len(m.elements))
		ref = referenceAt(index, 0)
	}

	m.bucket(egid.GroupID).set(egid.EntityID, ref)
	m.live++
	return ref, nil
}

// Update records that the entity at from now lives at to.
func (m *ReferenceMap) Update(from, to EGID) error {
	ref, ok := m.ReferenceOf(from)
	if !ok {
		return m.violation("update", from)
	}
	element := &m.elements[slotOf(ref)]
	assert.That(element.version == ref.Version, "reverse map holds a stale reference")

	m.reverse[from.GroupID].remove(from.EntityID)
	m.bucket(to.GroupID).set(to.EntityID, ref)
	element.egid = to
	return nil
}

// Remove invalidates the reference of the entity at egid and returns its slot to the free list.
func (m *ReferenceMap) Remove(egid EGID) error {
	ref, ok := m.ReferenceOf(egid)
	if !ok {
		return m.violation("remove", egid)
	}
	m.reverse[egid.GroupID].remove(egid.EntityID)
	m.free(ref)
	return nil
}

// Resolve returns the current location of ref. It reports false for InvalidReference, for stale
// references and for unique ids that were never handed out.
func (m *ReferenceMap) Resolve(ref EntityReference) (EGID, bool) {
	if !ref.IsValid() || slotOf(ref) >= uint32(len(m.elements)) { //nolint:gosec // len is bounded by Create
		return EGID{}, false
	}
	element := m.elements[slotOf(ref)]
	if element.version != ref.Version {
		return EGID{}, false
	}
	return element.egid, true
}

// MustResolve is like Resolve but tells the failure modes apart.
func (m *ReferenceMap) MustResolve(ref EntityReference) (EGID, error) {
	if !ref.IsValid() {
		return EGID{}, eris.Wrap(ErrInvalidReference, "resolving reference")
	}
	egid, ok := m.Resolve(ref)
	if !ok {
		return EGID{}, eris.Wrapf(ErrStaleReference, "resolving reference %s", ref)
	}
	return egid, nil
}

// ReferenceOf returns the reference of the entity living at egid.
func (m *ReferenceMap) ReferenceOf(egid EGID) (EntityReference, bool) {
	set, ok := m.reverse[egid.GroupID]
	if !ok {
		return InvalidReference, false
	}
	return set.get(egid.EntityID)
}

// RemoveGroup invalidates every reference living in group.
func (m *ReferenceMap) RemoveGroup(group GroupID) error {
	set, ok := m.reverse[group]
	if !ok {
		return nil
	}
	for row, ref := range set.all() {
		ok, err := m.check(ref, EGID{EntityID: row, GroupID: group})
		if err != nil {
			return err
		}
		if ok {
			m.free(ref)
		}
	}
	delete(m.reverse, group)
	return nil
}

// RetargetGroup moves every reference living in from to the end of to, keeping their relative
// order. It mirrors group storage appending all of from's rows after to's rows.
func (m *ReferenceMap) RetargetGroup(from, to GroupID) error {
	if from == to {
		return nil
	}
	set, ok := m.reverse[from]
	if !ok {
		return nil
	}

	dst := m.bucket(to)
	base := dst.len()
	dst.reserve(set.len())

	rank := 0
	for row, ref := range set.all() {
		ok, err := m.check(ref, EGID{EntityID: row, GroupID: from})
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		egid := EGID{EntityID: EntityID(base + rank), GroupID: to} //nolint:gosec // row space is uint32
		m.elements[slotOf(ref)].egid = egid
		dst.set(egid.EntityID, ref)
		rank++
	}
	delete(m.reverse, from)
	return nil
}

// Preallocate reserves room for size more entities, all of them expected in group.
func (m *ReferenceMap) Preallocate(group GroupID, size int) {
	if size <= 0 {
		return
	}
	// Only capacity grows. The free list sentinel is len(elements) and must not move.
	m.elements = slices.Grow(m.elements, size)
	m.bucket(group).reserve(size)
}

// Len returns the number of live references.
func (m *ReferenceMap) Len() int {
	return m.live
}

// Cap returns the number of slots ever handed out, live or free.
func (m *ReferenceMap) Cap() int {
	return len(m.elements)
}

// GroupLen returns the number of live references in group.
func (m *ReferenceMap) GroupLen(group GroupID) int {
	set, ok := m.reverse[group]
	if !ok {
		return 0
	}
	return set.len()
}

func (m *ReferenceMap) bucket(group GroupID) *referenceSet {
	set, ok := m.reverse[group]
	if !ok {
		set = newReferenceSet(0)
		m.reverse[group] = set
	}
	return set
}

func (m *ReferenceMap) free(ref EntityReference) {
	index := slotOf(ref)
	element := &m.elements[index]
	element.version++
	element.egid = EGID{EntityID: EntityID(m.nextIndex), GroupID: 0}
	m.nextIndex = index
	m.live--
}

// check verifies that the forward slot of ref points back at egid. Mismatched entries are skipped
// outside strict mode.
func (m *ReferenceMap) check(ref EntityReference, egid EGID) (bool, error) {
	element := m.elements[slotOf(ref)]
	if element.version == ref.Version && element.egid == egid {
		return true, nil
	}
	return false, m.violation("bulk", egid)
}

func (m *ReferenceMap) violation(op string, egid EGID) error {
	m.logger.Error().
		Str("op", op).
		Stringer("egid", egid).
		Bool("strict", m.strict).
		Msg("no reference recorded for entity location")
	if !m.strict {
		return nil
	}
	return eris.Wrapf(ErrInvariantViolation, "%s at %s", op, egid)
}

// referenceAt returns the reference of the slot at index. UniqueID 0 is left to InvalidReference.
func referenceAt(index, version uint32) EntityReference {
	return EntityReference{UniqueID: index + 1, Version: version}
}

// slotOf returns the forward array index of a valid reference.
func slotOf(ref EntityReference) uint32 {
	return ref.UniqueID - 1
}
