package ecs

import (
	"bytes"
	"context"
	"sync"
	"testing"

	. "github.com/argus-labs/gecs/pkg/ecs/internal/testutils"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type funcEngine struct {
	name   string
	groups GroupSet
	run    func(ctx context.Context, ec *EngineContext) error
}

func (e funcEngine) Name() string     { return e.name }
func (e funcEngine) Groups() GroupSet { return e.groups }
func (e funcEngine) Run(ctx context.Context, ec *EngineContext) error {
	return e.run(ctx, ec)
}

type funcSyncEngine struct {
	name string
	sync func(ctx context.Context, db *Database) error
}

func (e funcSyncEngine) Name() string { return e.name }
func (e funcSyncEngine) Sync(ctx context.Context, db *Database) error {
	return e.sync(ctx, db)
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	logger := zerolog.Nop()
	w, err := NewWorld(Options{Workers: 2, QueueSlots: 2, Logger: &logger})
	require.NoError(t, err)
	return w
}

func TestEngineScheduler_OrdersOverlappingEngines(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	s := newEngineScheduler()
	s.register("a", NewGroupSet(1), record("a"))
	s.register("b", NewGroupSet(1, 2), record("b"))
	s.register("c", NewGroupSet(2), record("c"))
	s.register("d", NewGroupSet(9), record("d"))
	s.createSchedule()

	assert.ElementsMatch(t, []int{0, 3}, s.tier0)
	assert.Equal(t, []int{1}, s.graph[0])
	assert.Equal(t, []int{2}, s.graph[1])

	for range 3 {
		order = order[:0]
		require.NoError(t, s.run(context.Background()))
		require.Len(t, order, 4)

		index := func(name string) int {
			for i, n := range order {
				if n == name {
					return i
				}
			}
			return -1
		}
		assert.Less(t, index("a"), index("b"))
		assert.Less(t, index("b"), index("c"))
	}
}

func TestEngineScheduler_RunsEveryEngineOnError(t *testing.T) {
	t.Parallel()

	var ran sync.Map
	s := newEngineScheduler()
	s.register("fails", NewGroupSet(1), func(context.Context) error {
		ran.Store("fails", true)
		return eris.New("engine failure")
	})
	s.register("dependent", NewGroupSet(1), func(context.Context) error {
		ran.Store("dependent", true)
		return nil
	})
	s.createSchedule()

	err := s.run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine fails failed")

	_, ok := ran.Load("dependent")
	assert.True(t, ok, "dependents still run")
}

func TestWorld_Tick(t *testing.T) {
	t.Parallel()

	w := newTestWorld(t)
	db := w.Database()
	eating, full := doofusGroups(t, db)

	var refs []EntityReference
	for id := range 10 {
		refs = append(refs, buildTracked(t, db, eating, id))
	}

	// Swap every even entity to full from parallel jobs.
	require.NoError(t, w.AddEngine(funcEngine{
		name:   "sort",
		groups: NewGroupSet(eating, full),
		run: func(ctx context.Context, ec *EngineContext) error {
			buffers, ok := Query1[Tracked](ec.DB(), eating)
			if !ok {
				return eris.New("missing eating group")
			}
			return ec.ParallelFor(ctx, buffers.Len(), func(slot, i int) error {
				if buffers.First[i].ID%2 != 0 {
					return nil
				}
				return ec.EnqueueSwapEGID(slot, EGID{EntityID: EntityID(i), GroupID: eating}, full)
			})
		},
	}))

	var built EntityReference
	require.NoError(t, w.AddSyncEngine(funcSyncEngine{
		name: "spawn",
		sync: func(_ context.Context, db *Database) error {
			if w.CurrentTick() > 0 {
				return nil
			}
			ei, err := db.Build(eating)
			if err != nil {
				return err
			}
			built = ei.Reference()
			return Init(ei, Tracked{ID: 101})
		},
	}))

	stats, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.Tick)
	assert.Equal(t, 5, stats.Drain.Swapped)
	assert.Equal(t, uint64(1), w.CurrentTick())

	for id, ref := range refs {
		egid, ok := db.Resolve(ref)
		require.True(t, ok)
		want := eating
		if id%2 == 0 {
			want = full
		}
		assert.Equal(t, want, egid.GroupID, "entity %d", id)
		assert.Equal(t, id, trackedID(t, db, ref))
	}
	assert.True(t, db.Alive(built))
	assert.Equal(t, 6, db.Count(eating))

	require.Error(t, w.AddEngine(funcEngine{name: "late"}), "engines can't be added after ticking")
	require.Error(t, w.AddSyncEngine(funcSyncEngine{name: "late"}))
}

func TestWorld_EngineErrorSkipsDrain(t *testing.T) {
	t.Parallel()

	w := newTestWorld(t)
	db := w.Database()
	eating, _ := doofusGroups(t, db)
	ref := buildTracked(t, db, eating, 1)

	require.NoError(t, w.AddEngine(funcEngine{
		name:   "remove-then-fail",
		groups: NewGroupSet(eating),
		run: func(ctx context.Context, ec *EngineContext) error {
			if err := ec.Do(ctx, func(slot int) error { return ec.EnqueueRemove(slot, ref) }); err != nil {
				return err
			}
			return eris.New("engine failure")
		},
	}))

	_, err := w.Tick(context.Background())
	require.Error(t, err)
	assert.True(t, db.Alive(ref))
	assert.Equal(t, 1, db.Queue().Pending(), "queued changes wait for the next drain")
	assert.Equal(t, uint64(0), w.CurrentTick())

	_, err = db.Drain(context.Background())
	require.NoError(t, err)
	assert.False(t, db.Alive(ref))
}

func TestWorld_EnginesCannotBuild(t *testing.T) {
	t.Parallel()

	w := newTestWorld(t)
	db := w.Database()
	eating, _ := doofusGroups(t, db)

	require.NoError(t, w.AddEngine(funcEngine{
		name:   "builder",
		groups: NewGroupSet(eating),
		run: func(_ context.Context, ec *EngineContext) error {
			assert.Panics(t, func() { _, _ = ec.DB().Build(eating) })
			assert.Panics(t, func() { _, _ = ec.DB().Drain(context.Background()) })
			return nil
		},
	}))

	_, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, w.ID())
}

func TestWorld_EngineLoggerCarriesTrace(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.WarnLevel)
	provider := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	w, err := NewWorld(Options{Workers: 1, QueueSlots: 1, Logger: &logger, Tracer: provider.Tracer("test")})
	require.NoError(t, err)

	var spanID string
	require.NoError(t, w.AddEngine(funcEngine{
		name: "logs",
		run: func(ctx context.Context, ec *EngineContext) error {
			spanID = trace.SpanFromContext(ctx).SpanContext().SpanID().String()
			ec.Logger().Warn().Msg("from engine")
			return nil
		},
	}))
	_, err = w.Tick(context.Background())
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "from engine", entry["message"])
	assert.Equal(t, "logs", entry["engine"])
	assert.Equal(t, spanID, entry["span_id"])
	assert.NotEmpty(t, entry["trace_id"])
}
