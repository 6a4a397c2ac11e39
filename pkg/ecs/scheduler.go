package ecs

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// engineMetadata contains the metadata for an engine.
type engineMetadata struct {
	name   string                          // The name of the engine
	groups GroupSet                        // Groups the engine reads or writes
	fn     func(ctx context.Context) error // Function that wraps Engine.Run
}

// engineScheduler runs engines concurrently while keeping engines that share a group in
// registration order.
type engineScheduler struct {
	engines []engineMetadata // The engines to run
	tier0   []int            // Engines without dependencies
	graph   map[int][]int    // Engine -> engines that must wait for it
	indeg   []int32          // Number of dependencies of each engine
}

func newEngineScheduler() engineScheduler {
	return engineScheduler{
		engines: make([]engineMetadata, 0),
		tier0:   make([]int, 0),
		graph:   make(map[int][]int),
	}
}

// register adds an engine. Must be called before createSchedule.
func (s *engineScheduler) register(name string, groups GroupSet, fn func(ctx context.Context) error) {
	s.engines = append(s.engines, engineMetadata{name: name, groups: groups, fn: fn})
}

// createSchedule builds the dependency graph. Must be called after every engine is registered
// and before the first run.
func (s *engineScheduler) createSchedule() {
	s.graph = make(map[int][]int, len(s.engines))
	s.indeg = make([]int32, len(s.engines))

	for a := range s.engines {
		for b := a + 1; b < len(s.engines); b++ {
			if s.engines[a].groups.Overlaps(s.engines[b].groups) {
				s.graph[a] = append(s.graph[a], b)
				s.indeg[b]++
			}
		}
	}

	s.tier0 = s.tier0[:0]
	for id, n := range s.indeg {
		if n == 0 {
			s.tier0 = append(s.tier0, id)
		}
	}
}

// run executes every engine once. An engine error doesn't stop its dependents from running so a
// tick always runs every engine. The first error is returned.
func (s *engineScheduler) run(ctx context.Context) error {
	if len(s.engines) == 0 {
		return nil
	}

	remaining := make([]atomic.Int32, len(s.engines))
	for id, n := range s.indeg {
		remaining[id].Store(n)
	}

	ready := make(chan int, len(s.engines))
	for _, id := range s.tier0 {
		ready <- id
	}

	g := new(errgroup.Group)
	for range s.engines {
		id := <-ready
		g.Go(func() error {
			var err error
			if err = s.engines[id].fn(ctx); err != nil { // The error assignment is intended here
				err = eris.Wrapf(err, "engine %s failed", s.engines[id].name)
			}

			for _, dependent := range s.graph[id] {
				if remaining[dependent].Add(-1) == 0 {
					ready <- dependent
				}
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "engine returned an error")
	}
	return nil
}
