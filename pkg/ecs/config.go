package ecs

import (
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// config holds the runtime configuration read from the environment.
type config struct {
	// Number of worker goroutines used by parallel jobs. 0 means GOMAXPROCS.
	Workers int `env:"GECS_WORKERS" envDefault:"0"`

	// Number of structural change queue slots. 0 means one per worker.
	QueueSlots int `env:"GECS_QUEUE_SLOTS" envDefault:"0"`

	// Fail drains on reverse map desyncs instead of logging and continuing.
	Strict bool `env:"GECS_STRICT" envDefault:"true"`

	// Initial row capacity of every new group.
	InitialCapacity int `env:"GECS_INITIAL_CAPACITY" envDefault:"16"`
}

// loadConfig loads the configuration from environment variables.
func loadConfig() (config, error) {
	cfg := config{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse ecs config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate config")
	}

	return cfg, nil
}

// validate performs validation on the loaded configuration.
func (cfg *config) validate() error {
	if cfg.Workers < 0 {
		return eris.New("workers cannot be negative")
	}
	if cfg.QueueSlots < 0 {
		return eris.New("queue slots cannot be negative")
	}
	if cfg.InitialCapacity < 0 {
		return eris.New("initial capacity cannot be negative")
	}
	return nil
}

// applyToOptions applies the configuration values to the given Options.
func (cfg *config) applyToOptions(opt *Options) {
	opt.Workers = cfg.Workers
	opt.QueueSlots = cfg.QueueSlots
	opt.InitialCapacity = cfg.InitialCapacity
	if cfg.Strict {
		opt.Strictness = StrictnessStrict
	} else {
		opt.Strictness = StrictnessLenient
	}
}

// Options configure a Database and the World driving it. Non-zero fields override the
// environment.
type Options struct {
	Workers         int             // Worker goroutines for parallel jobs, 0 means GOMAXPROCS
	QueueSlots      int             // Structural change queue slots, 0 means one per worker
	Strictness      Strictness      // How drains treat reverse map desyncs
	InitialCapacity int             // Initial row capacity of new groups
	Logger          *zerolog.Logger // Logger, defaults to the global "ecs" logger
	Tracer          trace.Tracer    // Tracer, defaults to a noop tracer
}

func newDefaultOptions() Options {
	return Options{
		Workers:         0,
		QueueSlots:      0,
		Strictness:      StrictnessStrict,
		InitialCapacity: 16, //nolint:mnd // default
		Logger:          nil,
		Tracer:          nil,
	}
}

// apply merges the given options into the current options, overriding non-zero values.
func (opt *Options) apply(newOpt Options) {
	if newOpt.Workers != 0 {
		opt.Workers = newOpt.Workers
	}
	if newOpt.QueueSlots != 0 {
		opt.QueueSlots = newOpt.QueueSlots
	}
	if newOpt.Strictness != StrictnessUndefined {
		opt.Strictness = newOpt.Strictness
	}
	if newOpt.InitialCapacity != 0 {
		opt.InitialCapacity = newOpt.InitialCapacity
	}
	if newOpt.Logger != nil {
		opt.Logger = newOpt.Logger
	}
	if newOpt.Tracer != nil {
		opt.Tracer = newOpt.Tracer
	}
}

// validate checks that all options are valid.
func (opt *Options) validate() error {
	if opt.Workers < 0 {
		return eris.New("workers cannot be negative")
	}
	if opt.QueueSlots < 0 {
		return eris.New("queue slots cannot be negative")
	}
	if opt.InitialCapacity < 0 {
		return eris.New("initial capacity cannot be negative")
	}
	if opt.Strictness == StrictnessUndefined {
		return eris.New("strictness must be specified")
	}
	return nil
}

// resolve replaces automatic values with concrete ones.
func (opt *Options) resolve() {
	if opt.Workers == 0 {
		opt.Workers = runtime.GOMAXPROCS(0)
	}
	if opt.QueueSlots == 0 {
		opt.QueueSlots = opt.Workers
	}
}

// newOptions builds the effective options: defaults, then environment, then overrides.
func newOptions(overrides Options) (Options, error) {
	cfg, err := loadConfig()
	if err != nil {
		return Options{}, eris.Wrap(err, "failed to load config")
	}

	options := newDefaultOptions()
	cfg.applyToOptions(&options)
	options.apply(overrides)
	if err := options.validate(); err != nil {
		return Options{}, eris.Wrap(err, "invalid options")
	}
	options.resolve()
	return options, nil
}

// Strictness controls how drains treat a reverse map desync, i.e. an update or remove of a
// location that has no reference recorded.
type Strictness uint8

const (
	StrictnessUndefined Strictness = iota // Used as the zero value
	StrictnessStrict                      // Return ErrInvariantViolation
	StrictnessLenient                     // Log and treat the call as a no-op
)

func (s Strictness) String() string {
	switch s {
	case StrictnessStrict:
		return "strict"
	case StrictnessLenient:
		return "lenient"
	case StrictnessUndefined:
		return "undefined"
	default:
		return "undefined"
	}
}
