package doofuses

import (
	"github.com/argus-labs/gecs/pkg/ecs"
	"github.com/rotisserie/eris"
)

// Team splits doofuses and food. Doofuses only eat food of their own team.
type Team uint8

const (
	TeamRed Team = iota
	TeamBlue
	teamCount
)

func (t Team) String() string {
	switch t {
	case TeamRed:
		return "red"
	case TeamBlue:
		return "blue"
	case teamCount:
		return "unknown"
	default:
		return "unknown"
	}
}

// TeamGroups are the exclusive groups of one team. A doofus is either idle or eating, a piece of
// food is either available or locked by the doofus walking to it.
type TeamGroups struct {
	Idle       ecs.GroupID
	Eating     ecs.GroupID
	Food       ecs.GroupID
	FoodLocked ecs.GroupID
}

// Groups holds the groups of every team.
type Groups [teamCount]TeamGroups

// Group tags.
const (
	TagDoofus = "doofus"
	TagFood   = "food"
	TagIdle   = "idle"
	TagEating = "eating"
	TagLocked = "locked"
)

func createGroups(db *ecs.Database) (Groups, error) {
	doofus := []ecs.ComponentKind{
		ecs.Kind[Position](), ecs.Kind[Velocity](), ecs.Kind[Meal](), ecs.Kind[Hunger](),
	}
	food := []ecs.ComponentKind{ecs.Kind[Position]()}

	var groups Groups
	for team := range teamCount {
		layouts := []struct {
			dst   *ecs.GroupID
			state string
			kinds []ecs.ComponentKind
			tags  []string
		}{
			{&groups[team].Idle, "doofuses-idle", doofus, []string{TagDoofus, TagIdle}},
			{&groups[team].Eating, "doofuses-eating", doofus, []string{TagDoofus, TagEating}},
			{&groups[team].Food, "food", food, []string{TagFood}},
			{&groups[team].FoodLocked, "food-locked", food, []string{TagFood, TagLocked}},
		}
		for _, layout := range layouts {
			id, err := db.CreateGroup(team.String()+"-"+layout.state, layout.kinds...)
			if err != nil {
				return Groups{}, eris.Wrapf(err, "failed to create %s groups", team)
			}
			if err := db.TagGroup(id, append(layout.tags, team.String())...); err != nil {
				return Groups{}, eris.Wrapf(err, "failed to tag %s groups", team)
			}
			*layout.dst = id
		}
	}
	return groups, nil
}
