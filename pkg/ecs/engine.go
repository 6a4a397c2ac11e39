package ecs

import (
	"context"

	"github.com/rs/zerolog"
)

// Engine is the logic that runs once per tick over a set of groups. Engines whose group sets
// overlap run one after the other in registration order, the others run concurrently.
//
// Engines may write component values through queries and mappers and request structural changes
// through the EngineContext. They must not build entities or drain.
type Engine interface {
	Name() string
	Groups() GroupSet
	Run(ctx context.Context, ec *EngineContext) error
}

// SyncEngine runs after the drain, alone, with full access to the database. It is the place to
// build new entities.
type SyncEngine interface {
	Name() string
	Sync(ctx context.Context, db *Database) error
}

// EngineContext is what an engine sees of the world during a tick.
type EngineContext struct {
	db     *Database
	exec   *Executor
	tick   uint64
	logger zerolog.Logger
}

// DB returns the database for use with the query and mapper functions.
func (ec *EngineContext) DB() *Database {
	return ec.db
}

// Tick returns the number of the running tick, starting at 0.
func (ec *EngineContext) Tick() uint64 {
	return ec.tick
}

// Logger returns the engine's logger.
func (ec *EngineContext) Logger() *zerolog.Logger {
	return &ec.logger
}

// ParallelFor runs fn over [0, n) on the world's executor.
func (ec *EngineContext) ParallelFor(ctx context.Context, n int, fn func(slot, i int) error) error {
	return ec.exec.ParallelFor(ctx, n, fn)
}

// Do runs fn on the calling goroutine with an exclusive queue slot.
func (ec *EngineContext) Do(ctx context.Context, fn func(slot int) error) error {
	return ec.exec.Do(ctx, fn)
}

// EnqueueSwap requests moving the entity named by ref to group to at the end of the tick.
func (ec *EngineContext) EnqueueSwap(slot int, ref EntityReference, to GroupID) error {
	return ec.db.queue.EnqueueSwap(slot, ref, to)
}

// EnqueueSwapEGID requests moving the entity at egid to group to at the end of the tick.
func (ec *EngineContext) EnqueueSwapEGID(slot int, egid EGID, to GroupID) error {
	return ec.db.queue.EnqueueSwapEGID(slot, egid, to)
}

// EnqueueRemove requests removing the entity named by ref at the end of the tick.
func (ec *EngineContext) EnqueueRemove(slot int, ref EntityReference) error {
	return ec.db.queue.EnqueueRemove(slot, ref)
}

// EnqueueRemoveEGID requests removing the entity at egid at the end of the tick.
func (ec *EngineContext) EnqueueRemoveEGID(slot int, egid EGID) error {
	return ec.db.queue.EnqueueRemoveEGID(slot, egid)
}

// EnqueueSwapGroup requests moving every entity in from to to at the end of the tick.
func (ec *EngineContext) EnqueueSwapGroup(slot int, from, to GroupID) error {
	return ec.db.queue.EnqueueSwapGroup(slot, from, to)
}

// EnqueueRemoveGroup requests removing every entity in group at the end of the tick.
func (ec *EngineContext) EnqueueRemoveGroup(slot int, group GroupID) error {
	return ec.db.queue.EnqueueRemoveGroup(slot, group)
}
