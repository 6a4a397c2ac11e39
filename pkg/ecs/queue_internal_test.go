package ecs

import (
	"testing"

	. "github.com/argus-labs/gecs/pkg/ecs/internal/testutils"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueFailsFast(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t, Options{QueueSlots: 2})
	eating, full := doofusGroups(t, db)
	live := buildTracked(t, db, eating, 1)
	stale := buildTracked(t, db, eating, 2)
	require.NoError(t, db.Queue().EnqueueRemove(0, stale))
	drain(t, db)

	q := db.Queue()
	tests := []struct {
		name    string
		enqueue func() error
		wantErr error
	}{
		{
			name:    "swap live entity",
			enqueue: func() error { return q.EnqueueSwap(1, live, full) },
		},
		{
			name:    "slot out of range",
			enqueue: func() error { return q.EnqueueSwap(2, live, full) },
			wantErr: ErrSlotOutOfRange,
		},
		{
			name:    "negative slot",
			enqueue: func() error { return q.EnqueueRemove(-1, live) },
			wantErr: ErrSlotOutOfRange,
		},
		{
			name:    "invalid reference",
			enqueue: func() error { return q.EnqueueRemove(0, InvalidReference) },
			wantErr: ErrInvalidReference,
		},
		{
			name:    "stale reference",
			enqueue: func() error { return q.EnqueueSwap(0, stale, full) },
			wantErr: ErrStaleReference,
		},
		{
			name:    "unknown target group",
			enqueue: func() error { return q.EnqueueSwap(0, live, GroupID(50)) },
			wantErr: ErrGroupNotFound,
		},
		{
			name:    "unknown egid",
			enqueue: func() error { return q.EnqueueRemoveEGID(0, EGID{EntityID: 9, GroupID: eating}) },
			wantErr: ErrEntityNotFound,
		},
		{
			name:    "egid in a group never populated",
			enqueue: func() error { return q.EnqueueSwapEGID(0, EGID{EntityID: 0, GroupID: full}, eating) },
			wantErr: ErrEntityNotFound,
		},
		{
			name:    "swap group from unknown group",
			enqueue: func() error { return q.EnqueueSwapGroup(0, GroupID(50), full) },
			wantErr: ErrGroupNotFound,
		},
		{
			name:    "remove unknown group",
			enqueue: func() error { return q.EnqueueRemoveGroup(0, GroupID(50)) },
			wantErr: ErrGroupNotFound,
		},
	}

	// Subtests share the queue, so they run sequentially.
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := q.Pending()
			err := tt.enqueue()
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, before+1, q.Pending())
				return
			}
			require.Error(t, err)
			assert.True(t, eris.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, before, q.Pending(), "a rejected op must not be queued")
		})
	}
}

func TestQueue_EGIDIsRecordedAsReference(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t, Options{QueueSlots: 1})
	group, err := db.CreateGroup("group", Kind[Tracked]())
	require.NoError(t, err)
	buildTracked(t, db, group, 1)
	second := buildTracked(t, db, group, 2)

	require.NoError(t, db.Queue().EnqueueRemoveEGID(0, EGID{EntityID: 1, GroupID: group}))
	require.Len(t, db.queue.slots[0], 1)
	assert.Equal(t, second, db.queue.slots[0][0].ref)
	assert.Equal(t, opRemove, db.queue.slots[0][0].kind)
}

func TestQueue_ResetKeepsCapacity(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t, Options{QueueSlots: 2})
	eating, full := doofusGroups(t, db)
	for id := range 32 {
		ref := buildTracked(t, db, eating, id)
		require.NoError(t, db.Queue().EnqueueSwap(id%2, ref, full))
	}
	assert.Equal(t, 32, db.Queue().Pending())
	capBefore := cap(db.queue.slots[0])

	drain(t, db)
	assert.Equal(t, 0, db.Queue().Pending())
	assert.Equal(t, capBefore, cap(db.queue.slots[0]))
	assert.Equal(t, 2, db.Queue().Slots())
}

func TestOpKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "swap", opSwap.String())
	assert.Equal(t, "remove", opRemove.String())
	assert.Equal(t, "swap-group", opSwapGroup.String())
	assert.Equal(t, "remove-group", opRemoveGroup.String())
	assert.Equal(t, "unknown", opKind(99).String())
}
