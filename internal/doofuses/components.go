package doofuses

import "github.com/argus-labs/gecs/pkg/ecs"

type Position struct{ X, Z float32 }

func (Position) Name() string { return "Position" }

type Velocity struct{ X, Z float32 }

func (Velocity) Name() string { return "Velocity" }

// Meal is the food a doofus is walking to. It only means something while the doofus is eating.
type Meal struct{ Target ecs.EntityReference }

func (Meal) Name() string { return "Meal" }

// Hunger grows while a doofus is idle and resets when it eats.
type Hunger struct{ Value int }

func (Hunger) Name() string { return "Hunger" }
