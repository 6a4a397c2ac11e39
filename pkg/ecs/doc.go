// Package ecs is a grouped entity-component-system runtime.
//
// Entities live in exclusive groups. Each group stores its components column-wise, one slice per
// component, so engines iterate over contiguous memory. An entity's location is an EGID, its row
// and group, which changes whenever the entity moves or another row is compacted into its place.
// Code that needs to hold on to an entity keeps an EntityReference instead, a versioned handle the
// ReferenceMap translates to the current EGID.
//
// Structural changes (moving entities between groups, removing them) never happen while engines
// run. Jobs enqueue them into their own slot of the Queue and the Database applies them at the
// end of the tick in Drain, keeping group storage and the reference map in lockstep.
//
//	db, _ := ecs.NewDatabase(ecs.Options{})
//	eating, _ := db.CreateGroup("eating", ecs.Kind[Position](), ecs.Kind[Hunger]())
//	ei, _ := db.Build(eating)
//	_ = ecs.Init(ei, Position{X: 1})
//	ref := ei.Reference()
//
//	_ = db.Queue().EnqueueRemove(0, ref)
//	_, _ = db.Drain(ctx)
//	_, ok := db.Resolve(ref) // false
package ecs
