package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/learning-sim/learning-sim/sim"
)

// loadConfig resolves a run configuration. Without a path the defaults are
// used; otherwise the file's values are decoded over the defaults, as YAML or
// TOML depending on the extension.
func loadConfig(path string) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// Strict parsing: typos must cause errors
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".toml":
		tree, err := toml.Load(string(data))
		if err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
		if err := tree.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("unmarshaling %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}
	return cfg, nil
}

// overrides holds the CLI flags that take precedence over the config file.
type overrides struct {
	algorithm    string
	seed         int64
	participants int
	duration     float64
	period       float64
	testPeriod   float64
	stop         string
	rounds       int
	busyPolicy   string
	traceLevel   string
}

func (o *overrides) register(fs *pflag.FlagSet) {
	def := sim.DefaultConfig()
	fs.StringVar(&o.algorithm, "algorithm", def.Algorithm, "Learning algorithm ("+strings.Join(sim.RegisteredProtocols(), ", ")+")")
	fs.Int64Var(&o.seed, "seed", def.Seed, "Seed for peer selection and task names")
	fs.IntVar(&o.participants, "participants", def.Participants, "Number of participants")
	fs.Float64Var(&o.duration, "duration", def.Duration, "Simulated duration")
	fs.Float64Var(&o.period, "period", def.Period, "Dissemination period (<= 0 disables)")
	fs.Float64Var(&o.testPeriod, "test-period", def.TestPeriod, "Test period (<= 0 disables)")
	fs.StringVar(&o.stop, "stop", string(def.Stop), "Stop condition (duration, rounds)")
	fs.IntVar(&o.rounds, "rounds", def.Rounds, "Rounds per participant in rounds mode")
	fs.StringVar(&o.busyPolicy, "busy-policy", def.BusyPolicy, "What to do with models received while busy (drop, queue)")
	fs.StringVar(&o.traceLevel, "trace-level", def.TraceLevel, "Trace verbosity (none, transfers, events)")
}

// apply copies every flag the user set explicitly into cfg.
func (o *overrides) apply(fs *pflag.FlagSet, cfg *sim.Config) {
	if fs.Changed("algorithm") {
		cfg.Algorithm = o.algorithm
	}
	if fs.Changed("seed") {
		cfg.Seed = o.seed
	}
	if fs.Changed("participants") {
		cfg.Participants = o.participants
	}
	if fs.Changed("duration") {
		cfg.Duration = o.duration
	}
	if fs.Changed("period") {
		cfg.Period = o.period
	}
	if fs.Changed("test-period") {
		cfg.TestPeriod = o.testPeriod
	}
	if fs.Changed("stop") {
		cfg.Stop = sim.StopMode(o.stop)
	}
	if fs.Changed("rounds") {
		cfg.Rounds = o.rounds
	}
	if fs.Changed("busy-policy") {
		cfg.BusyPolicy = o.busyPolicy
	}
	if fs.Changed("trace-level") {
		cfg.TraceLevel = o.traceLevel
	}
}

// resolveConfig loads path and applies flag overrides on top.
func resolveConfig(path string, fs *pflag.FlagSet, o *overrides) (sim.Config, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return cfg, err
	}
	o.apply(fs, &cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
