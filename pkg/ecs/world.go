package ecs

import (
	"context"
	"time"

	"github.com/argus-labs/gecs/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// World drives a Database: every tick runs the engines, drains the structural changes they
// queued, then runs the sync engines.
type World struct {
	id        uuid.UUID
	db        *Database
	exec      *Executor
	scheduler engineScheduler
	sync      []SyncEngine
	tick      uint64
	scheduled bool // Set once the engine schedule is built, after which engines can't be added
	logger    zerolog.Logger
}

// TickStats summarizes a tick.
type TickStats struct {
	Tick     uint64        `json:"tick"`
	Drain    DrainStats    `json:"drain"`
	Duration time.Duration `json:"duration"`
}

// NewWorld creates a world with an empty database.
func NewWorld(opts Options) (*World, error) {
	db, err := NewDatabase(opts)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create world")
	}

	id := uuid.New()
	return &World{
		id:        id,
		db:        db,
		exec:      NewExecutor(db.Workers(), db.Slots()),
		scheduler: newEngineScheduler(),
		sync:      make([]SyncEngine, 0),
		logger:    db.logger.With().Str("world", id.String()).Logger(),
	}, nil
}

// ID returns the world's unique id.
func (w *World) ID() uuid.UUID {
	return w.id
}

// Database returns the world's database.
func (w *World) Database() *Database {
	return w.db
}

// Executor returns the world's executor.
func (w *World) Executor() *Executor {
	return w.exec
}

// CurrentTick returns the number of ticks completed.
func (w *World) CurrentTick() uint64 {
	return w.tick
}

// AddEngine registers an engine. Engines can only be added before the first tick.
func (w *World) AddEngine(engine Engine) error {
	if w.scheduled {
		return eris.Errorf("cannot add engine %s after the world started ticking", engine.Name())
	}

	logger := w.logger.With().Str("engine", engine.Name()).Logger()
	w.scheduler.register(engine.Name(), engine.Groups(), func(ctx context.Context) error {
		ctx, span := w.db.tracer.Start(ctx, "ecs.engine",
			trace.WithAttributes(attribute.String("ecs.engine", engine.Name())))
		defer span.End()

		ec := &EngineContext{db: w.db, exec: w.exec, tick: w.tick, logger: telemetry.WithTrace(ctx, logger)}
		if err := engine.Run(ctx, ec); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	})
	return nil
}

// AddSyncEngine registers an engine that runs after the drain of every tick, in registration
// order.
func (w *World) AddSyncEngine(engine SyncEngine) error {
	if w.scheduled {
		return eris.Errorf("cannot add sync engine %s after the world started ticking", engine.Name())
	}
	w.sync = append(w.sync, engine)
	return nil
}

// Tick runs one tick. When an engine fails the drain is skipped and the queued changes are kept
// for the next drain.
func (w *World) Tick(ctx context.Context) (TickStats, error) {
	if !w.scheduled {
		w.scheduler.createSchedule()
		w.scheduled = true
	}

	ctx, span := w.db.tracer.Start(ctx, "ecs.tick",
		trace.WithAttributes(attribute.Int64("ecs.tick", int64(w.tick)))) //nolint:gosec // tick count fits
	defer span.End()

	start := time.Now()
	stats := TickStats{Tick: w.tick}

	w.db.running.Store(true)
	err := w.scheduler.run(ctx)
	w.db.running.Store(false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats, eris.Wrapf(err, "tick %d", w.tick)
	}

	drain, err := w.db.Drain(ctx)
	stats.Drain = drain
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats, eris.Wrapf(err, "tick %d", w.tick)
	}

	for _, engine := range w.sync {
		if err := engine.Sync(ctx, w.db); err != nil {
			err = eris.Wrapf(err, "sync engine %s failed", engine.Name())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return stats, eris.Wrapf(err, "tick %d", w.tick)
		}
	}

	stats.Duration = time.Since(start)
	span.SetStatus(codes.Ok, "")
	w.logger.Debug().Uint64("tick", w.tick).Dur("duration", stats.Duration).Msg("tick completed")
	w.tick++
	return stats, nil
}
