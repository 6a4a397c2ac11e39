package ecs

import (
	"slices"
	"testing"

	. "github.com/argus-labs/gecs/pkg/ecs/internal/testutils"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_Buffers(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t, Options{})
	eating, full := doofusGroups(t, db)
	empty, err := db.CreateGroup("empty", Kind[Tracked](), Kind[Position]())
	require.NoError(t, err)

	for id := range 3 {
		ref := buildTracked(t, db, eating, id)
		require.NoError(t, Set(db, ref, Hunger{Value: id * 10}))
	}

	t.Run("group carrying every component", func(t *testing.T) {
		t.Parallel()
		buffers, ok := Query2[Tracked, Hunger](db, eating)
		require.True(t, ok)
		require.Equal(t, 3, buffers.Len())
		for i := range buffers.Len() {
			assert.Equal(t, i, buffers.First[i].ID)
			assert.Equal(t, i*10, buffers.Second[i].Value)
		}
	})

	t.Run("group lacking a component", func(t *testing.T) {
		t.Parallel()
		_, ok := Query2[Tracked, Hunger](db, full)
		assert.False(t, ok)
	})

	t.Run("unknown group", func(t *testing.T) {
		t.Parallel()
		_, ok := Query1[Tracked](db, GroupID(40))
		assert.False(t, ok)
	})

	t.Run("component no group registered", func(t *testing.T) {
		t.Parallel()
		_, ok := Query1[Velocity](db, eating)
		assert.False(t, ok)
	})

	t.Run("existing empty group", func(t *testing.T) {
		t.Parallel()
		buffers, ok := Query2[Tracked, Position](db, empty)
		require.True(t, ok)
		assert.Equal(t, 0, buffers.Len())
	})
}

func TestQuery_BuffersWriteThrough(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t, Options{})
	eating, _ := doofusGroups(t, db)
	ref := buildTracked(t, db, eating, 1)

	buffers, ok := Query3[Tracked, Position, Hunger](db, eating)
	require.True(t, ok)
	buffers.Second[0] = Position{X: 5, Y: 6}
	buffers.Third[0].Value++

	pos, err := Get[Position](db, ref)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 5, Y: 6}, pos)
	hunger, err := Get[Hunger](db, ref)
	require.NoError(t, err)
	assert.Equal(t, 1, hunger.Value)
}

func TestQuery_Query4(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t, Options{})
	g, err := db.CreateGroup("all", Kind[Tracked](), Kind[Position](), Kind[Velocity](), Kind[Health]())
	require.NoError(t, err)
	ref := buildTracked(t, db, g, 9)
	require.NoError(t, Set(db, ref, Health{Value: 3}))

	buffers, ok := Query4[Tracked, Position, Velocity, Health](db, g)
	require.True(t, ok)
	require.Equal(t, 1, buffers.Len())
	assert.Equal(t, 9, buffers.First[0].ID)
	assert.Equal(t, 3, buffers.Fourth[0].Value)

	_, ok = Query4[Tracked, Position, Velocity, Hunger](db, g)
	assert.False(t, ok)
}

func TestQueryGroups(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t, Options{})
	eating, full := doofusGroups(t, db)
	other, err := db.CreateGroup("other", Kind[Tracked](), Kind[Hunger]())
	require.NoError(t, err)

	buildTracked(t, db, other, 1)
	buildTracked(t, db, eating, 2)
	buildTracked(t, db, eating, 3)
	buildTracked(t, db, full, 4)

	set := NewGroupSet(other, full, eating, GroupID(99))

	var visited []GroupID
	total := 0
	for g, buffers := range QueryGroups1[Tracked](db, set) {
		visited = append(visited, g)
		total += buffers.Len()
	}
	assert.Equal(t, []GroupID{eating, full, other}, visited, "ascending order, missing group skipped")
	assert.Equal(t, 4, total)

	visited = visited[:0]
	for g := range QueryGroups2[Tracked, Hunger](db, set) {
		visited = append(visited, g)
	}
	assert.Equal(t, []GroupID{eating, other}, visited, "groups without Hunger are skipped")

	// Early break.
	count := 0
	for range QueryGroups1[Tracked](db, set) {
		count++
		break
	}
	assert.Equal(t, 1, count)

	assert.True(t, slices.IsSorted(visited))
}

func TestMapper(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t, Options{})
	eating, full := doofusGroups(t, db)
	buildTracked(t, db, eating, 1)
	second := buildTracked(t, db, eating, 2)

	mapper, ok := MapperFor[Tracked](db, eating)
	require.True(t, ok)
	assert.Equal(t, 2, mapper.Len())

	tracked, ok := mapper.Get(1)
	require.True(t, ok)
	assert.Equal(t, 2, tracked.ID)

	tracked.ID = 20
	assert.Equal(t, 20, trackedID(t, db, second), "mapper writes go to storage")

	_, ok = mapper.Get(2)
	assert.False(t, ok, "out of range row")

	egid, _ := db.Resolve(second)
	_, ok = mapper.GetEGID(egid)
	assert.True(t, ok)
	_, ok = mapper.GetEGID(EGID{EntityID: 0, GroupID: full})
	assert.False(t, ok, "egid of another group")

	_, ok = MapperFor[Hunger](db, full)
	assert.False(t, ok)
	_, ok = MapperFor[Tracked](db, GroupID(12))
	assert.False(t, ok)

	var zero Mapper[Tracked]
	_, ok = zero.Get(0)
	assert.False(t, ok)
	assert.Equal(t, 0, zero.Len())
}

func TestReferenceMapper(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t, Options{})
	eating, full := doofusGroups(t, db)
	inEating := buildTracked(t, db, eating, 1)
	inFull := buildTracked(t, db, full, 2)
	gone := buildTracked(t, db, full, 3)
	require.NoError(t, db.Queue().EnqueueRemove(0, gone))
	drain(t, db)

	trackedMapper := ReferenceMapperFor[Tracked](db)
	got, ok := trackedMapper.Get(inEating)
	require.True(t, ok)
	assert.Equal(t, 1, got.ID)
	got, ok = trackedMapper.Get(inFull)
	require.True(t, ok)
	assert.Equal(t, 2, got.ID)

	_, ok = trackedMapper.Get(gone)
	assert.False(t, ok, "stale reference")
	_, ok = trackedMapper.Get(InvalidReference)
	assert.False(t, ok)

	hungerMapper := ReferenceMapperFor[Hunger](db)
	_, ok = hungerMapper.Get(inFull)
	assert.False(t, ok, "group without the component")
	_, ok = hungerMapper.Get(inEating)
	assert.True(t, ok)
}

func TestGetSet(t *testing.T) {
	t.Parallel()

	db := newTestDatabase(t, Options{})
	eating, _ := doofusGroups(t, db)
	ref := buildTracked(t, db, eating, 1)

	require.NoError(t, Set(db, ref, Hunger{Value: 4}))
	hunger, err := Get[Hunger](db, ref)
	require.NoError(t, err)
	assert.Equal(t, 4, hunger.Value)

	_, err = Get[Hunger](db, InvalidReference)
	assert.True(t, eris.Is(err, ErrInvalidReference))

	err = Set(db, EntityReference{UniqueID: ref.UniqueID, Version: 5}, Hunger{})
	assert.True(t, eris.Is(err, ErrStaleReference))

	_, err = Get[Velocity](db, ref)
	assert.True(t, eris.Is(err, ErrComponentNotFound))
}

func TestGroupSet(t *testing.T) {
	t.Parallel()

	a := NewGroupSet(1, 3, 5)
	b := NewGroupSet(2, 4)
	c := NewGroupSet(5, 6)

	assert.Equal(t, 3, a.Len())
	assert.True(t, a.Contains(3))
	assert.False(t, a.Contains(2))
	assert.False(t, a.Overlaps(b))
	assert.True(t, a.Overlaps(c))

	union := a.Union(b)
	assert.Equal(t, 5, union.Len())
	assert.Equal(t, 3, a.Len(), "union doesn't modify the receiver")

	assert.Equal(t, []GroupID{1, 2, 3, 4, 5}, slices.Collect(union.All()))

	var empty GroupSet
	assert.Equal(t, 0, empty.Len())
	assert.False(t, empty.Overlaps(a))
	assert.Empty(t, slices.Collect(empty.All()))
}
