package sim

import (
	"fmt"
	"math"

	"github.com/learning-sim/learning-sim/sim/trace"
)

// StopMode selects the global stop condition of a run.
type StopMode string

const (
	// StopDuration ends the run once the next event lies beyond Config.Duration.
	StopDuration StopMode = "duration"
	// StopRounds ends the run once every client reports Finished.
	StopRounds StopMode = "rounds"
)

// LearningConfig groups the parameters of the simulated compute-time model.
type LearningConfig struct {
	LocalSteps         int     `yaml:"local_steps" toml:"local_steps"`
	BatchSize          int     `yaml:"batch_size" toml:"batch_size"`
	AugmentationFactor float64 `yaml:"augmentation_factor" toml:"augmentation_factor"`
}

// ComputeConfig sets the simulated compute speed per participant.
// A speed of 0 makes training instantaneous.
type ComputeConfig struct {
	Speed  float64   `yaml:"speed" toml:"speed"`
	Speeds []float64 `yaml:"speeds,omitempty" toml:"speeds"` // per participant; overrides Speed when set
}

// NetworkConfig sets model size and link capacity (bytes per time unit).
type NetworkConfig struct {
	ModelSize  float64   `yaml:"model_size" toml:"model_size"`
	Bandwidth  float64   `yaml:"bandwidth" toml:"bandwidth"`
	Bandwidths []float64 `yaml:"bandwidths,omitempty" toml:"bandwidths"` // per participant; overrides Bandwidth when set
}

// Config is the resolved configuration bundle a run consumes.
// Loading it from files is the caller's job (see cmd/).
type Config struct {
	Algorithm    string         `yaml:"algorithm" toml:"algorithm"`
	Participants int            `yaml:"participants" toml:"participants"`
	Seed         int64          `yaml:"seed" toml:"seed"`
	Stop         StopMode       `yaml:"stop" toml:"stop"`
	Duration     float64        `yaml:"duration" toml:"duration"`
	Rounds       int            `yaml:"rounds" toml:"rounds"`
	Period       float64        `yaml:"period" toml:"period"`           // dissemination period; ≤ 0 disables
	TestPeriod   float64        `yaml:"test_period" toml:"test_period"` // test period; ≤ 0 disables
	BusyPolicy   string         `yaml:"busy_policy" toml:"busy_policy"`
	TraceLevel   string         `yaml:"trace_level" toml:"trace_level"`
	Learning     LearningConfig `yaml:"learning" toml:"learning"`
	Compute      ComputeConfig  `yaml:"compute" toml:"compute"`
	Network      NetworkConfig  `yaml:"network" toml:"network"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Algorithm:    "gossip",
		Participants: 10,
		Seed:         42,
		Stop:         StopDuration,
		Duration:     100,
		Rounds:       10,
		Period:       10,
		TestPeriod:   100,
		BusyPolicy:   string(BusyDrop),
		TraceLevel:   string(trace.TraceLevelNone),
		Learning: LearningConfig{
			LocalSteps:         5,
			BatchSize:          32,
			AugmentationFactor: 1,
		},
		Compute: ComputeConfig{Speed: 10},
		Network: NetworkConfig{ModelSize: 1e6, Bandwidth: 1e6},
	}
}

// SpeedOf returns the compute speed of participant idx.
func (c Config) SpeedOf(idx int) float64 {
	if idx >= 0 && idx < len(c.Compute.Speeds) {
		return c.Compute.Speeds[idx]
	}
	return c.Compute.Speed
}

// BandwidthOf returns the link capacity of participant idx.
func (c Config) BandwidthOf(idx int) float64 {
	if idx >= 0 && idx < len(c.Network.Bandwidths) {
		return c.Network.Bandwidths[idx]
	}
	return c.Network.Bandwidth
}

// Validate checks that all fields hold usable values.
// A zero bandwidth passes: the resulting stall is reported by the run itself.
func (c Config) Validate() error {
	if c.Participants < 1 {
		return fmt.Errorf("participants must be >= 1, got %d", c.Participants)
	}
	switch c.Stop {
	case StopDuration:
		if err := validateFinitePositive("duration", c.Duration); err != nil {
			return err
		}
	case StopRounds:
		if c.Rounds < 1 {
			return fmt.Errorf("rounds must be >= 1 in rounds mode, got %d", c.Rounds)
		}
		if err := validateFinitePositive("duration", c.Duration); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown stop mode %q; valid: duration, rounds", c.Stop)
	}
	if err := validateFinite("period", c.Period); err != nil {
		return err
	}
	if err := validateFinite("test_period", c.TestPeriod); err != nil {
		return err
	}
	if !IsValidBusyPolicy(c.BusyPolicy) {
		return fmt.Errorf("unknown busy_policy %q; valid: drop, queue", c.BusyPolicy)
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		return fmt.Errorf("unknown trace_level %q; valid: none, transfers, events", c.TraceLevel)
	}
	if c.Learning.LocalSteps < 0 || c.Learning.BatchSize < 0 {
		return fmt.Errorf("learning.local_steps and learning.batch_size must be non-negative")
	}
	if err := validateFiniteNonNegative("learning.augmentation_factor", c.Learning.AugmentationFactor); err != nil {
		return err
	}
	if err := validateFinitePositive("network.model_size", c.Network.ModelSize); err != nil {
		return err
	}
	if err := validatePerParticipant("compute.speeds", c.Compute.Speed, c.Compute.Speeds, c.Participants); err != nil {
		return err
	}
	return validatePerParticipant("network.bandwidths", c.Network.Bandwidth, c.Network.Bandwidths, c.Participants)
}

func validatePerParticipant(name string, fallback float64, values []float64, n int) error {
	if len(values) != 0 && len(values) != n {
		return fmt.Errorf("%s must have one entry per participant (%d), got %d", name, n, len(values))
	}
	if err := validateFiniteNonNegative(name+" default", fallback); err != nil {
		return err
	}
	for i, v := range values {
		if err := validateFiniteNonNegative(fmt.Sprintf("%s[%d]", name, i), v); err != nil {
			return err
		}
	}
	return nil
}

func validateFinite(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	return nil
}

func validateFiniteNonNegative(name string, val float64) error {
	if err := validateFinite(name, val); err != nil {
		return err
	}
	if val < 0 {
		return fmt.Errorf("%s must be non-negative, got %f", name, val)
	}
	return nil
}

func validateFinitePositive(name string, val float64) error {
	if err := validateFinite(name, val); err != nil {
		return err
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, val)
	}
	return nil
}
