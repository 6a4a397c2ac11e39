// Command doofuses runs the doofus simulation for a number of ticks and prints a report.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/argus-labs/gecs/internal/doofuses"
	"github.com/argus-labs/gecs/pkg/ecs"
	"github.com/argus-labs/gecs/pkg/telemetry"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

type flags struct {
	game     doofuses.Config
	ticks    int
	workers  int
	slots    int
	logLevel string
	json     bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, eris.ToString(err, true))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := flags{game: doofuses.DefaultConfig()}

	cmd := &cobra.Command{
		Use:           "doofuses",
		Short:         "Run the doofus simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&f.game.Doofuses, "doofuses", f.game.Doofuses, "doofuses per team")
	fs.IntVar(&f.game.Food, "food", f.game.Food, "available food kept per team")
	fs.IntVar(&f.game.HungerThreshold, "hunger", f.game.HungerThreshold, "hunger at which a doofus looks for food")
	fs.Float32Var(&f.game.Speed, "speed", f.game.Speed, "distance walked per tick")
	fs.Float32Var(&f.game.WorldSize, "size", f.game.WorldSize, "side of the spawn square")
	fs.Uint64Var(&f.game.Seed, "seed", f.game.Seed, "seed of the spawn positions")
	fs.IntVar(&f.ticks, "ticks", 100, "number of ticks to run")
	fs.IntVar(&f.workers, "workers", 0, "worker goroutines (0 uses GECS_WORKERS or GOMAXPROCS)")
	fs.IntVar(&f.slots, "slots", 0, "structural change queue slots (0 uses GECS_QUEUE_SLOTS or workers)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level, overrides OTEL_LOG_LEVEL")
	fs.BoolVar(&f.json, "json", false, "print the report as JSON")

	return cmd
}

func run(ctx context.Context, f flags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.New(ctx, telemetry.Options{
		ServiceName: "doofuses",
		LogLevel:    f.logLevel,
		Output:      os.Stderr,
	})
	if err != nil {
		return eris.Wrap(err, "failed to set up telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			tel.Logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	logger := tel.GetLogger("ecs")
	game, err := doofuses.NewGame(f.game, ecs.Options{
		Workers:    f.workers,
		QueueSlots: f.slots,
		Logger:     &logger,
		Tracer:     tel.Tracer,
	})
	if err != nil {
		return eris.Wrap(err, "failed to create game")
	}

	report, err := game.Run(ctx, f.ticks)
	if err != nil {
		return eris.Wrap(err, "simulation failed")
	}

	if f.json {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return eris.Wrap(err, "failed to encode report")
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	}

	tel.Logger.Info().
		Str("world", report.World).
		Uint64("ticks", report.Ticks).
		Int("eaten", report.Eaten).
		Int("skipped", report.Skipped).
		Int("entities", report.Entities).
		Dur("duration", report.Duration).
		Msg("simulation finished")
	return nil
}
