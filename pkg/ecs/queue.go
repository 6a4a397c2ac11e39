package ecs

import (
	"sync/atomic"

	"github.com/argus-labs/gecs/pkg/assert"
	"github.com/rotisserie/eris"
)

// opKind is the kind of a pending structural change.
type opKind uint8

const (
	opSwap        opKind = iota // Move one entity to another group
	opRemove                    // Remove one entity
	opSwapGroup                 // Move every entity of a group to another group
	opRemoveGroup               // Remove every entity of a group
)

func (k opKind) String() string {
	switch k {
	case opSwap:
		return "swap"
	case opRemove:
		return "remove"
	case opSwapGroup:
		return "swap-group"
	case opRemoveGroup:
		return "remove-group"
	default:
		return "unknown"
	}
}

// pendingOp is a structural change waiting for the next drain. Single-entity ops name the entity
// by reference so they stay valid while earlier ops of the same drain compact rows.
type pendingOp struct {
	kind opKind
	ref  EntityReference // Entity for opSwap and opRemove
	from GroupID         // Source group for opSwapGroup and opRemoveGroup
	to   GroupID         // Target group for opSwap and opSwapGroup
}

// Queue buffers structural changes requested by jobs. Each slot belongs to one concurrency unit,
// so enqueueing never needs a lock as long as no two goroutines share a slot. Enqueueing reads the
// reference map and must not overlap a drain.
type Queue struct {
	slots    [][]pendingOp
	refs     *ReferenceMap
	hasGroup func(GroupID) bool
	draining *atomic.Bool
}

func newQueue(slots int, refs *ReferenceMap, hasGroup func(GroupID) bool, draining *atomic.Bool) *Queue {
	assert.That(slots > 0, "queue needs at least one slot")
	return &Queue{
		slots:    make([][]pendingOp, slots),
		refs:     refs,
		hasGroup: hasGroup,
		draining: draining,
	}
}

// EnqueueSwap requests moving the entity named by ref to group to.
func (q *Queue) EnqueueSwap(slot int, ref EntityReference, to GroupID) error {
	if err := q.checkGroup(to); err != nil {
		return eris.Wrap(err, "enqueueing swap")
	}
	if err := q.checkReference(ref); err != nil {
		return eris.Wrap(err, "enqueueing swap")
	}
	return q.push(slot, pendingOp{kind: opSwap, ref: ref, to: to})
}

// EnqueueSwapEGID requests moving the entity currently at egid to group to.
func (q *Queue) EnqueueSwapEGID(slot int, egid EGID, to GroupID) error {
	ref, err := q.referenceOf(egid)
	if err != nil {
		return eris.Wrap(err, "enqueueing swap")
	}
	return q.EnqueueSwap(slot, ref, to)
}

// EnqueueRemove requests removing the entity named by ref.
func (q *Queue) EnqueueRemove(slot int, ref EntityReference) error {
	if err := q.checkReference(ref); err != nil {
		return eris.Wrap(err, "enqueueing remove")
	}
	return q.push(slot, pendingOp{kind: opRemove, ref: ref})
}

// EnqueueRemoveEGID requests removing the entity currently at egid.
func (q *Queue) EnqueueRemoveEGID(slot int, egid EGID) error {
	ref, err := q.referenceOf(egid)
	if err != nil {
		return eris.Wrap(err, "enqueueing remove")
	}
	return q.EnqueueRemove(slot, ref)
}

// EnqueueSwapGroup requests moving every entity in from to the end of to.
func (q *Queue) EnqueueSwapGroup(slot int, from, to GroupID) error {
	if err := q.checkGroup(from); err != nil {
		return eris.Wrap(err, "enqueueing group swap")
	}
	if err := q.checkGroup(to); err != nil {
		return eris.Wrap(err, "enqueueing group swap")
	}
	return q.push(slot, pendingOp{kind: opSwapGroup, from: from, to: to})
}

// EnqueueRemoveGroup requests removing every entity in group.
func (q *Queue) EnqueueRemoveGroup(slot int, group GroupID) error {
	if err := q.checkGroup(group); err != nil {
		return eris.Wrap(err, "enqueueing group remove")
	}
	return q.push(slot, pendingOp{kind: opRemoveGroup, from: group})
}

// Slots returns the number of slots.
func (q *Queue) Slots() int {
	return len(q.slots)
}

// Pending returns the number of buffered operations across all slots.
func (q *Queue) Pending() int {
	n := 0
	for _, ops := range q.slots {
		n += len(ops)
	}
	return n
}

// all yields the buffered operations, slot by slot, each slot in enqueue order.
func (q *Queue) all(yield func(pendingOp) bool) {
	for _, ops := range q.slots {
		for _, op := range ops {
			if !yield(op) {
				return
			}
		}
	}
}

// reset empties every slot and keeps the capacity.
func (q *Queue) reset() {
	for i := range q.slots {
		clear(q.slots[i])
		q.slots[i] = q.slots[i][:0]
	}
}

func (q *Queue) push(slot int, op pendingOp) error {
	assert.That(!q.draining.Load(), "structural change enqueued during a drain")
	if slot < 0 || slot >= len(q.slots) {
		return eris.Wrapf(ErrSlotOutOfRange, "slot %d of %d", slot, len(q.slots))
	}
	q.slots[slot] = append(q.slots[slot], op)
	return nil
}

func (q *Queue) checkReference(ref EntityReference) error {
	_, err := q.refs.MustResolve(ref)
	return err
}

func (q *Queue) checkGroup(g GroupID) error {
	if !q.hasGroup(g) {
		return eris.Wrapf(ErrGroupNotFound, "group %d", g)
	}
	return nil
}

func (q *Queue) referenceOf(egid EGID) (EntityReference, error) {
	ref, ok := q.refs.ReferenceOf(egid)
	if !ok {
		return InvalidReference, eris.Wrapf(ErrEntityNotFound, "entity at %s", egid)
	}
	return ref, nil
}
