package doofuses

import (
	"context"
	"math"

	"github.com/argus-labs/gecs/pkg/ecs"
	"github.com/rotisserie/eris"
)

// eatDistanceSqr is how close, squared, a doofus must get to its meal to eat it.
const eatDistanceSqr = 2

// lookingForFoodEngine pairs hungry idle doofuses with available food of their team. The doofus
// moves to eating and the food to locked, so no other doofus picks it.
type lookingForFoodEngine struct {
	groups    Groups
	threshold int
}

var _ ecs.Engine = (*lookingForFoodEngine)(nil)

func (e *lookingForFoodEngine) Name() string { return "looking-for-food" }

func (e *lookingForFoodEngine) Groups() ecs.GroupSet {
	var set ecs.GroupSet
	for _, team := range e.groups {
		set.Add(team.Idle)
		set.Add(team.Food)
	}
	return set
}

func (e *lookingForFoodEngine) Run(ctx context.Context, ec *ecs.EngineContext) error {
	return ec.Do(ctx, func(slot int) error {
		db := ec.DB()
		for _, team := range e.groups {
			doofuses, ok := ecs.Query2[Meal, Hunger](db, team.Idle)
			if !ok {
				return eris.New("idle doofuses group is missing components")
			}
			foodCount := db.Count(team.Food)

			next := 0
			for i := range doofuses.Len() {
				if next == foodCount {
					break
				}
				if doofuses.Second[i].Value < e.threshold {
					continue
				}

				foodEGID := ecs.EGID{EntityID: ecs.EntityID(next), GroupID: team.Food} //nolint:gosec // row
				food, ok := db.ReferenceOf(foodEGID)
				if !ok {
					return eris.Errorf("no reference for food at %s", foodEGID)
				}
				next++

				doofuses.First[i].Target = food
				doofus := ecs.EGID{EntityID: ecs.EntityID(i), GroupID: team.Idle} //nolint:gosec // row
				if err := ec.EnqueueSwapEGID(slot, doofus, team.Eating); err != nil {
					return err
				}
				if err := ec.EnqueueSwapEGID(slot, foodEGID, team.FoodLocked); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// consumingFoodEngine steers eating doofuses to their meal. Once close enough the doofus eats:
// the food is removed and the doofus goes back to idle.
type consumingFoodEngine struct {
	groups Groups
}

var _ ecs.Engine = (*consumingFoodEngine)(nil)

func (e *consumingFoodEngine) Name() string { return "consuming-food" }

func (e *consumingFoodEngine) Groups() ecs.GroupSet {
	var set ecs.GroupSet
	for _, team := range e.groups {
		set.Add(team.Eating)
		set.Add(team.FoodLocked)
	}
	return set
}

func (e *consumingFoodEngine) Run(ctx context.Context, ec *ecs.EngineContext) error {
	db := ec.DB()
	foodPositions := ecs.ReferenceMapperFor[Position](db)

	for _, team := range e.groups {
		doofuses, ok := ecs.Query4[Position, Velocity, Meal, Hunger](db, team.Eating)
		if !ok {
			return eris.New("eating doofuses group is missing components")
		}

		err := ec.ParallelFor(ctx, doofuses.Len(), func(slot, i int) error {
			self := ecs.EGID{EntityID: ecs.EntityID(i), GroupID: team.Eating} //nolint:gosec // row
			velocity := &doofuses.Second[i]
			meal := doofuses.Third[i].Target

			food, ok := foodPositions.Get(meal)
			if !ok {
				// The meal vanished, look for another one.
				*velocity = Velocity{}
				return ec.EnqueueSwapEGID(slot, self, team.Idle)
			}

			position := doofuses.First[i]
			dx, dz := food.X-position.X, food.Z-position.Z
			if dx*dx+dz*dz < eatDistanceSqr {
				*velocity = Velocity{}
				doofuses.Fourth[i] = Hunger{}
				if err := ec.EnqueueSwapEGID(slot, self, team.Idle); err != nil {
					return err
				}
				return ec.EnqueueRemove(slot, meal)
			}

			// Keep walking. Closer food may spawn later, so don't lock the direction.
			*velocity = Velocity{X: dx, Z: dz}
			return nil
		})
		if err != nil {
			return eris.Wrapf(err, "%s doofuses failed to eat", TeamOf(e.groups, team.Eating))
		}
	}
	return nil
}

// movementEngine integrates the velocity of every eating doofus.
type movementEngine struct {
	set   ecs.GroupSet
	speed float32
}

var _ ecs.Engine = (*movementEngine)(nil)

func (e *movementEngine) Name() string         { return "movement" }
func (e *movementEngine) Groups() ecs.GroupSet { return e.set }

func (e *movementEngine) Run(ctx context.Context, ec *ecs.EngineContext) error {
	for _, buffers := range ecs.QueryGroups2[Position, Velocity](ec.DB(), e.set) {
		err := ec.ParallelFor(ctx, buffers.Len(), func(_, i int) error {
			v := buffers.Second[i]
			dist := float32(math.Hypot(float64(v.X), float64(v.Z)))
			if dist == 0 {
				return nil
			}
			// Velocity points at the target, so a step is capped at the remaining distance.
			scale := min(e.speed/dist, 1)
			buffers.First[i].X += v.X * scale
			buffers.First[i].Z += v.Z * scale
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// hungerEngine makes idle doofuses hungrier every tick.
type hungerEngine struct {
	set ecs.GroupSet
}

var _ ecs.Engine = (*hungerEngine)(nil)

func (e *hungerEngine) Name() string         { return "hunger" }
func (e *hungerEngine) Groups() ecs.GroupSet { return e.set }

func (e *hungerEngine) Run(ctx context.Context, ec *ecs.EngineContext) error {
	for _, buffers := range ecs.QueryGroups1[Hunger](ec.DB(), e.set) {
		err := ec.ParallelFor(ctx, buffers.Len(), func(_, i int) error {
			buffers.First[i].Value++
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// TeamOf returns the team owning g.
func TeamOf(groups Groups, g ecs.GroupID) Team {
	for team, tg := range groups {
		if g == tg.Idle || g == tg.Eating || g == tg.Food || g == tg.FoodLocked {
			return Team(team) //nolint:gosec // bounded by teamCount
		}
	}
	return teamCount
}
