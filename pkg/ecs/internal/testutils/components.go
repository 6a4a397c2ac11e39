package testutils

type Position struct{ X, Y float64 }

func (Position) Name() string { return "Position" }

type Velocity struct{ X, Y float64 }

func (Velocity) Name() string { return "Velocity" }

type Health struct {
	Value int `json:"value"`
}

func (Health) Name() string { return "Health" }

type Hunger struct{ Value int }

func (Hunger) Name() string { return "Hunger" }

type Label struct{ Text string }

func (Label) Name() string { return "Label" }

// Tracked stores a value the tests use to tell entities apart after rows have been compacted.
type Tracked struct{ ID int }

func (Tracked) Name() string { return "Tracked" }
