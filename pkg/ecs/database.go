package ecs

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/argus-labs/gecs/pkg/assert"
	"github.com/argus-labs/gecs/pkg/telemetry"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Database owns the entities of a world: group storage, the reference map and the structural
// change queue.
//
// Component values may be written concurrently through query buffers and mappers, one writer per
// row. Everything that changes the shape of storage happens either on the caller's goroutine
// between ticks (CreateGroup, Build, Preallocate) or inside Drain.
type Database struct {
	components componentManager
	groups     []*group           // Indexed by GroupID
	byName     map[string]GroupID // Group name -> group id
	tagIDs     map[string]uint32  // Tag name -> tag id
	refs       *ReferenceMap
	queue      *Queue
	draining   atomic.Bool
	running    atomic.Bool // Set by World while engines run

	options Options
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewDatabase creates an empty database. Options not set fall back to the environment, then to
// defaults.
func NewDatabase(opts Options) (*Database, error) {
	options, err := newOptions(opts)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create database")
	}

	logger := telemetry.GetGlobalLogger("ecs")
	if options.Logger != nil {
		logger = *options.Logger
	}
	tracer := options.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("ecs")
	}

	db := &Database{
		components: newComponentManager(),
		groups:     make([]*group, 0),
		byName:     make(map[string]GroupID),
		tagIDs:     make(map[string]uint32),
		refs:       NewReferenceMap(logger, options.Strictness == StrictnessStrict),
		options:    options,
		logger:     logger,
		tracer:     tracer,
	}
	db.queue = newQueue(options.QueueSlots, db.refs, db.hasGroup, &db.draining)
	return db, nil
}

// -------------------------------------------------------------------------------------------------
// Groups
// -------------------------------------------------------------------------------------------------

// CreateGroup creates an exclusive group whose entities carry exactly the given components.
func (db *Database) CreateGroup(name string, kinds ...ComponentKind) (GroupID, error) {
	db.assertExclusive("create group")

	if name == "" {
		return 0, eris.New("group name cannot be empty")
	}
	if _, exists := db.byName[name]; exists {
		return 0, eris.Wrapf(ErrDuplicateGroup, "group %s", name)
	}

	var seen bitmap.Bitmap
	compIDs := make([]componentID, 0, len(kinds))
	for _, kind := range kinds {
		cid, err := db.components.register(kind)
		if err != nil {
			return 0, eris.Wrapf(err, "failed to register component for group %s", name)
		}
		if seen.Contains(cid) {
			return 0, eris.Errorf("component %s listed twice in group %s", kind.name, name)
		}
		seen.Set(cid)
		compIDs = append(compIDs, cid)
	}
	slices.Sort(compIDs)

	columns := make([]abstractColumn, len(compIDs))
	for i, cid := range compIDs {
		columns[i] = db.components.factories[cid](db.options.InitialCapacity)
	}

	id := GroupID(len(db.groups)) //nolint:gosec // groups are bounded by uint32
	db.groups = append(db.groups, newGroup(id, name, compIDs, columns))
	db.byName[name] = id

	db.logger.Debug().Str("group", name).Uint32("id", uint32(id)).Int("components", len(compIDs)).
		Msg("group created")
	return id, nil
}

// TagGroup attaches tags to a group. Tags let engines address compound sets of groups, e.g. all
// groups tagged "doofus" and "eating".
func (db *Database) TagGroup(g GroupID, tags ...string) error {
	db.assertExclusive("tag group")

	grp, err := db.mustGroup(g)
	if err != nil {
		return eris.Wrap(err, "failed to tag group")
	}
	for _, tag := range tags {
		if tag == "" {
			return eris.New("tag cannot be empty")
		}
		tid, ok := db.tagIDs[tag]
		if !ok {
			tid = uint32(len(db.tagIDs)) //nolint:gosec // tags are bounded by uint32
			db.tagIDs[tag] = tid
		}
		grp.tags.Set(tid)
	}
	return nil
}

// GroupsWithTags returns the groups carrying every given tag. Without tags it returns every group.
func (db *Database) GroupsWithTags(tags ...string) GroupSet {
	var want bitmap.Bitmap
	for _, tag := range tags {
		tid, ok := db.tagIDs[tag]
		if !ok {
			return GroupSet{}
		}
		want.Set(tid)
	}

	var set GroupSet
	for _, grp := range db.groups {
		intersect := want.Clone(nil)
		intersect.And(grp.tags)
		if intersect.Count() == want.Count() {
			set.Add(grp.id)
		}
	}
	return set
}

// Groups returns every group.
func (db *Database) Groups() GroupSet {
	return db.GroupsWithTags()
}

// GroupByName returns the id of the group called name.
func (db *Database) GroupByName(name string) (GroupID, bool) {
	id, ok := db.byName[name]
	return id, ok
}

// GroupName returns the name of g, or "" if g doesn't exist.
func (db *Database) GroupName(g GroupID) string {
	grp, ok := db.group(g)
	if !ok {
		return ""
	}
	return grp.name
}

// Count returns the number of entities in g.
func (db *Database) Count(g GroupID) int {
	grp, ok := db.group(g)
	if !ok {
		return 0
	}
	return grp.count
}

// Preallocate reserves room for n more entities in g.
func (db *Database) Preallocate(g GroupID, n int) error {
	db.assertExclusive("preallocate")

	grp, err := db.mustGroup(g)
	if err != nil {
		return eris.Wrap(err, "failed to preallocate")
	}
	grp.reserve(n)
	db.refs.Preallocate(g, n)
	return nil
}

func (db *Database) group(g GroupID) (*group, bool) {
	if int(g) >= len(db.groups) {
		return nil, false
	}
	return db.groups[g], true
}

func (db *Database) mustGroup(g GroupID) (*group, error) {
	grp, ok := db.group(g)
	if !ok {
		return nil, eris.Wrapf(ErrGroupNotFound, "group %d", g)
	}
	return grp, nil
}

func (db *Database) hasGroup(g GroupID) bool {
	_, ok := db.group(g)
	return ok
}

// -------------------------------------------------------------------------------------------------
// Entities
// -------------------------------------------------------------------------------------------------

// EntityInitializer is returned by Build. It names the new entity and sets its components.
type EntityInitializer struct {
	db  *Database
	ref EntityReference
}

// Reference returns the reference of the built entity.
func (ei EntityInitializer) Reference() EntityReference {
	return ei.ref
}

// Init sets component T on the entity being initialized.
func Init[T Component](ei EntityInitializer, value T) error {
	if err := Set(ei.db, ei.ref, value); err != nil {
		return eris.Wrap(err, "failed to initialize component")
	}
	return nil
}

// Build creates an entity in g with zero-valued components. The entity is live immediately.
func (db *Database) Build(g GroupID) (EntityInitializer, error) {
	db.assertExclusive("build")

	grp, err := db.mustGroup(g)
	if err != nil {
		return EntityInitializer{}, eris.Wrap(err, "failed to build entity")
	}

	egid := EGID{EntityID: EntityID(grp.newRow()), GroupID: g} //nolint:gosec // row space is uint32
	ref, err := db.refs.Create(egid)
	if err != nil {
		grp.swapRemove(int(egid.EntityID))
		return EntityInitializer{}, eris.Wrap(err, "failed to build entity")
	}
	return EntityInitializer{db: db, ref: ref}, nil
}

// BuildMany preallocates and builds n entities in g.
func (db *Database) BuildMany(g GroupID, n int) ([]EntityInitializer, error) {
	if err := db.Preallocate(g, n); err != nil {
		return nil, eris.Wrap(err, "failed to build entities")
	}
	initializers := make([]EntityInitializer, 0, n)
	for range n {
		ei, err := db.Build(g)
		if err != nil {
			return initializers, err
		}
		initializers = append(initializers, ei)
	}
	return initializers, nil
}

// Resolve returns the current location of ref.
func (db *Database) Resolve(ref EntityReference) (EGID, bool) {
	return db.refs.Resolve(ref)
}

// MustResolve is like Resolve but returns ErrInvalidReference or ErrStaleReference on failure.
func (db *Database) MustResolve(ref EntityReference) (EGID, error) {
	return db.refs.MustResolve(ref)
}

// ReferenceOf returns the reference of the entity at egid.
func (db *Database) ReferenceOf(egid EGID) (EntityReference, bool) {
	return db.refs.ReferenceOf(egid)
}

// Alive reports whether ref names a live entity.
func (db *Database) Alive(ref EntityReference) bool {
	_, ok := db.refs.Resolve(ref)
	return ok
}

// References returns the reference map.
func (db *Database) References() *ReferenceMap {
	return db.refs
}

// Queue returns the structural change queue.
func (db *Database) Queue() *Queue {
	return db.queue
}

// Slots returns the number of queue slots.
func (db *Database) Slots() int {
	return db.queue.Slots()
}

// Workers returns the configured number of parallel workers.
func (db *Database) Workers() int {
	return db.options.Workers
}

// Logger returns the database logger.
func (db *Database) Logger() zerolog.Logger {
	return db.logger
}

// -------------------------------------------------------------------------------------------------
// Drain
// -------------------------------------------------------------------------------------------------

// DrainStats summarizes a drain.
type DrainStats struct {
	Applied  int           `json:"applied"`  // Operations applied
	Skipped  int           `json:"skipped"`  // Operations whose entity was removed earlier in the same drain
	Swapped  int           `json:"swapped"`  // Entities moved to another group
	Removed  int           `json:"removed"`  // Entities removed
	Duration time.Duration `json:"duration"` // Wall time of the drain
}

// Drain applies every queued structural change: slot 0 first, each slot in enqueue order. Group
// storage and the reference map are updated in lockstep. Drain must not run concurrently with
// itself, with enqueueing or with jobs touching storage.
//
// ctx is only checked before the drain starts. Buffers are cleared even when an error is returned.
//
// An ErrInvariantViolation in strict mode aborts the drain after the operations before it were
// applied, and the operations after it are dropped. Storage is then partially drained and the
// database must be rebuilt.
func (db *Database) Drain(ctx context.Context) (DrainStats, error) {
	if err := ctx.Err(); err != nil {
		return DrainStats{}, eris.Wrap(err, "drain cancelled")
	}

	assert.That(!db.running.Load(), "drain while engines are running")
	assert.That(db.draining.CompareAndSwap(false, true), "concurrent drain")
	defer db.draining.Store(false)
	defer db.queue.reset()

	_, span := db.tracer.Start(ctx, "ecs.drain",
		trace.WithAttributes(attribute.Int("ecs.pending", db.queue.Pending())))
	defer span.End()

	start := time.Now()
	var stats DrainStats
	var err error
	for op := range db.queue.all {
		if err = db.apply(op, &stats); err != nil {
			err = eris.Wrapf(err, "failed to apply %s", op.kind)
			break
		}
	}
	stats.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("ecs.applied", stats.Applied),
		attribute.Int("ecs.skipped", stats.Skipped),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats, err
	}
	span.SetStatus(codes.Ok, "")

	if stats.Applied > 0 || stats.Skipped > 0 {
		db.logger.Debug().
			Int("applied", stats.Applied).
			Int("skipped", stats.Skipped).
			Int("swapped", stats.Swapped).
			Int("removed", stats.Removed).
			Dur("duration", stats.Duration).
			Msg("drained structural changes")
	}
	return stats, nil
}

func (db *Database) apply(op pendingOp, stats *DrainStats) error {
	switch op.kind {
	case opSwap:
		egid, ok := db.refs.Resolve(op.ref)
		if !ok {
			db.skip(op, stats)
			return nil
		}
		moved, err := db.swap(egid, op.to)
		if err != nil {
			return err
		}
		if moved {
			stats.Swapped++
		}
	case opRemove:
		egid, ok := db.refs.Resolve(op.ref)
		if !ok {
			db.skip(op, stats)
			return nil
		}
		if err := db.remove(egid); err != nil {
			return err
		}
		stats.Removed++
	case opSwapGroup:
		n, err := db.swapGroup(op.from, op.to)
		if err != nil {
			return err
		}
		stats.Swapped += n
	case opRemoveGroup:
		n, err := db.removeGroup(op.from)
		if err != nil {
			return err
		}
		stats.Removed += n
	default:
		assert.That(false, "unknown structural change kind")
	}
	stats.Applied++
	return nil
}

func (db *Database) skip(op pendingOp, stats *DrainStats) {
	stats.Skipped++
	db.logger.Debug().Stringer("op", op.kind).Stringer("ref", op.ref).
		Msg("skipped structural change on removed entity")
}

// swap moves the entity at egid to group to and reports whether it moved. The row compacted into
// the vacated slot gets its reference updated right away.
func (db *Database) swap(egid EGID, to GroupID) (bool, error) {
	if egid.GroupID == to {
		return false, nil
	}
	src, ok := db.group(egid.GroupID)
	assert.That(ok, "resolved entity lives in a missing group")
	dst, ok := db.group(to)
	assert.That(ok, "queued swap targets a missing group")

	row := int(egid.EntityID)
	newRow, last := src.moveRow(dst, row)

	to2 := EGID{EntityID: EntityID(newRow), GroupID: to} //nolint:gosec // row space is uint32
	if err := db.refs.Update(egid, to2); err != nil {
		return false, err
	}
	if last != row {
		moved := EGID{EntityID: EntityID(last), GroupID: egid.GroupID} //nolint:gosec // row space is uint32
		if err := db.refs.Update(moved, egid); err != nil {
			return false, err
		}
	}
	return true, nil
}

// remove deletes the entity at egid and invalidates its reference.
func (db *Database) remove(egid EGID) error {
	grp, ok := db.group(egid.GroupID)
	assert.That(ok, "resolved entity lives in a missing group")

	row := int(egid.EntityID)
	last := grp.swapRemove(row)

	if err := db.refs.Remove(egid); err != nil {
		return err
	}
	if last != row {
		moved := EGID{EntityID: EntityID(last), GroupID: egid.GroupID} //nolint:gosec // row space is uint32
		if err := db.refs.Update(moved, egid); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) swapGroup(from, to GroupID) (int, error) {
	if from == to {
		return 0, nil
	}
	src, ok := db.group(from)
	assert.That(ok, "queued group swap from a missing group")
	dst, ok := db.group(to)
	assert.That(ok, "queued group swap to a missing group")

	n := src.count
	base := src.moveAll(dst)
	assert.That(base == db.refs.GroupLen(to), "reverse map and storage disagree on group size")
	return n, db.refs.RetargetGroup(from, to)
}

func (db *Database) removeGroup(g GroupID) (int, error) {
	grp, ok := db.group(g)
	assert.That(ok, "queued group remove of a missing group")

	n := grp.count
	grp.clear()
	return n, db.refs.RemoveGroup(g)
}

func (db *Database) assertExclusive(op string) {
	assert.That(!db.draining.Load(), "%s during a drain", op)
	assert.That(!db.running.Load(), "%s while engines are running", op)
}

// -------------------------------------------------------------------------------------------------
// Stats
// -------------------------------------------------------------------------------------------------

// Stats is a point-in-time summary of the database.
type Stats struct {
	Groups       int            `json:"groups"`
	Entities     int            `json:"entities"`
	ReferenceCap int            `json:"reference_cap"`
	Pending      int            `json:"pending"`
	PerGroup     map[string]int `json:"per_group"`
}

// Stats returns a summary of the database.
func (db *Database) Stats() Stats {
	perGroup := make(map[string]int, len(db.groups))
	entities := 0
	for _, grp := range db.groups {
		perGroup[grp.name] = grp.count
		entities += grp.count
	}
	return Stats{
		Groups:       len(db.groups),
		Entities:     entities,
		ReferenceCap: db.refs.Cap(),
		Pending:      db.queue.Pending(),
		PerGroup:     perGroup,
	}
}
