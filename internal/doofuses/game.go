// Package doofuses is a small simulation built on the ecs runtime. Doofuses of two teams get
// hungry, lock a piece of food of their team, walk to it and eat it. A spawner keeps food around.
package doofuses

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/argus-labs/gecs/pkg/ecs"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config is the simulation setup.
type Config struct {
	Doofuses        int     // Doofuses per team
	Food            int     // Available food kept per team
	HungerThreshold int     // Hunger at which an idle doofus looks for food
	Speed           float32 // Distance walked per tick
	WorldSize       float32 // Side of the square everything spawns in
	Seed            uint64  // Seed of the spawn positions
}

// DefaultConfig returns a small but busy simulation.
func DefaultConfig() Config {
	return Config{
		Doofuses:        512,
		Food:            128,
		HungerThreshold: 3,
		Speed:           1.5,
		WorldSize:       100,
		Seed:            1,
	}
}

func (c Config) validate() error {
	if c.Doofuses < 0 || c.Food < 0 {
		return eris.New("doofus and food counts cannot be negative")
	}
	if c.Speed <= 0 {
		return eris.New("speed must be positive")
	}
	if c.WorldSize <= 0 {
		return eris.New("world size must be positive")
	}
	return nil
}

// Game wires the groups and engines onto a world.
type Game struct {
	world  *ecs.World
	groups Groups
	logger zerolog.Logger
	eaten  int
}

// Report summarizes a run.
type Report struct {
	World    string         `json:"world"`
	Ticks    uint64         `json:"ticks"`
	Eaten    int            `json:"eaten"`
	Skipped  int            `json:"skipped"`
	Entities int            `json:"entities"`
	Groups   map[string]int `json:"groups"`
	Duration time.Duration  `json:"duration_ns"`
}

// NewGame creates the world, its groups and engines, and spawns the doofuses.
func NewGame(cfg Config, opts ecs.Options) (*Game, error) {
	if err := cfg.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid game config")
	}

	world, err := ecs.NewWorld(opts)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create world")
	}
	db := world.Database()

	groups, err := createGroups(db)
	if err != nil {
		return nil, err
	}

	prng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)) //nolint:gosec // simulation
	engines := []ecs.Engine{
		&lookingForFoodEngine{groups: groups, threshold: cfg.HungerThreshold},
		&hungerEngine{set: db.GroupsWithTags(TagDoofus, TagIdle)},
		&consumingFoodEngine{groups: groups},
		&movementEngine{set: db.GroupsWithTags(TagDoofus, TagEating), speed: cfg.Speed},
	}
	for _, engine := range engines {
		if err := world.AddEngine(engine); err != nil {
			return nil, eris.Wrap(err, "failed to add engine")
		}
	}
	spawner := &foodSpawner{groups: groups, target: cfg.Food, size: cfg.WorldSize, prng: prng}
	if err := world.AddSyncEngine(spawner); err != nil {
		return nil, eris.Wrap(err, "failed to add spawner")
	}

	for _, team := range groups {
		doofuses, err := db.BuildMany(team.Idle, cfg.Doofuses)
		if err != nil {
			return nil, eris.Wrap(err, "failed to spawn doofuses")
		}
		for _, ei := range doofuses {
			if err := ecs.Init(ei, randomPosition(prng, cfg.WorldSize)); err != nil {
				return nil, err
			}
		}
	}
	if err := spawner.Sync(context.Background(), db); err != nil {
		return nil, err
	}

	return &Game{
		world:  world,
		groups: groups,
		logger: db.Logger().With().Str("world", world.ID().String()).Logger(),
	}, nil
}

// World returns the underlying world.
func (g *Game) World() *ecs.World {
	return g.world
}

// Groups returns the groups of every team.
func (g *Game) Groups() Groups {
	return g.groups
}

// Run ticks the world n times, or until ctx is done.
func (g *Game) Run(ctx context.Context, n int) (Report, error) {
	start := time.Now()
	skipped := 0
	for range n {
		if err := ctx.Err(); err != nil {
			break
		}
		stats, err := g.world.Tick(ctx)
		if err != nil {
			return g.report(start, skipped), eris.Wrap(err, "simulation stopped")
		}
		g.eaten += stats.Drain.Removed
		skipped += stats.Drain.Skipped
	}

	report := g.report(start, skipped)
	g.logger.Info().Uint64("ticks", report.Ticks).Int("eaten", report.Eaten).
		Dur("duration", report.Duration).Msg("simulation finished")
	return report, nil
}

func (g *Game) report(start time.Time, skipped int) Report {
	stats := g.world.Database().Stats()
	return Report{
		World:    g.world.ID().String(),
		Ticks:    g.world.CurrentTick(),
		Eaten:    g.eaten,
		Skipped:  skipped,
		Entities: stats.Entities,
		Groups:   stats.PerGroup,
		Duration: time.Since(start),
	}
}

// foodSpawner tops up the available food of every team after each drain.
type foodSpawner struct {
	groups Groups
	target int
	size   float32
	prng   *rand.Rand
}

var _ ecs.SyncEngine = (*foodSpawner)(nil)

func (s *foodSpawner) Name() string { return "food-spawner" }

func (s *foodSpawner) Sync(_ context.Context, db *ecs.Database) error {
	for _, team := range s.groups {
		missing := s.target - db.Count(team.Food)
		if missing <= 0 {
			continue
		}
		food, err := db.BuildMany(team.Food, missing)
		if err != nil {
			return eris.Wrap(err, "failed to spawn food")
		}
		for _, ei := range food {
			if err := ecs.Init(ei, randomPosition(s.prng, s.size)); err != nil {
				return err
			}
		}
	}
	return nil
}

func randomPosition(prng *rand.Rand, size float32) Position {
	return Position{X: prng.Float32() * size, Z: prng.Float32() * size}
}
