// Package simconfig loads the tunable simulation constants from YAML,
// overlaying defaults drawn from spec.md's balancer and redistributor
// sections so a config file only needs to name what it changes.
package simconfig

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BrunoSantos751/EcoGrid/balancer"
	"github.com/BrunoSantos751/EcoGrid/redistribute"
)

// Config is the on-disk tunable surface for one simulation run.
type Config struct {
	Balancer      BalancerConfig      `yaml:"balancer"`
	Redistributor RedistributorConfig `yaml:"redistributor"`
	Queue         QueueConfig         `yaml:"queue"`
	EnableNoise   bool                `yaml:"enable_noise"`
}

// BalancerConfig mirrors spec.md SS4.7's constants.
type BalancerConfig struct {
	TargetLoadPct   float64 `yaml:"target_load_pct"`
	EmergencyCapPct float64 `yaml:"emergency_cap_pct"`
	MaxCascadeDepth int     `yaml:"max_cascade_depth"`
}

// RedistributorConfig mirrors spec.md SS4.8's constants.
type RedistributorConfig struct {
	Threshold         float64 `yaml:"threshold"`
	Target            float64 `yaml:"target"`
	MinAmount         float64 `yaml:"min_amount"`
	MinLoadDifference float64 `yaml:"min_load_difference"`
	MaxPerCyclePct    float64 `yaml:"max_per_cycle_pct"`
}

// ToBalancerConfig converts the YAML-sourced tunables into the shape
// balancer.New expects.
func (c BalancerConfig) ToBalancerConfig() balancer.Config {
	return balancer.Config{
		TargetLoadPct:   c.TargetLoadPct,
		EmergencyCapPct: c.EmergencyCapPct,
		MaxCascadeDepth: c.MaxCascadeDepth,
	}
}

// ToRedistributorConfig converts the YAML-sourced tunables into the shape
// redistribute.New expects.
func (c RedistributorConfig) ToRedistributorConfig() redistribute.Config {
	return redistribute.Config{
		Threshold:         c.Threshold,
		Target:            c.Target,
		MinAmount:         c.MinAmount,
		MinLoadDifference: c.MinLoadDifference,
		MaxPerCyclePct:    c.MaxPerCyclePct,
	}
}

// QueueConfig bounds the PriorityQueue's capacity and aging window.
type QueueConfig struct {
	MaxSize         int     `yaml:"max_size"`
	MaxAgeSeconds   float64 `yaml:"max_age_seconds"`
}

// Default returns the constants as spec.md defines them.
func Default() Config {
	return Config{
		Balancer: BalancerConfig{
			TargetLoadPct:   0.70,
			EmergencyCapPct: 0.99,
			MaxCascadeDepth: 15,
		},
		Redistributor: RedistributorConfig{
			Threshold:         0.60,
			Target:            0.50,
			MinAmount:         10.0,
			MinLoadDifference: 0.15,
			MaxPerCyclePct:    0.20,
		},
		Queue: QueueConfig{
			MaxSize:       500,
			MaxAgeSeconds: 300,
		},
		EnableNoise: true,
	}
}

// Load reads path, overlaying its fields onto Default() so a config file
// need only specify the constants it overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("simconfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("simconfig: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("simconfig: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate sanity-checks the constants; it never fires on Default().
func (c Config) Validate() error {
	if c.Balancer.TargetLoadPct <= 0 || c.Balancer.TargetLoadPct >= c.Balancer.EmergencyCapPct {
		return errors.New("balancer.target_load_pct must be in (0, emergency_cap_pct)")
	}
	if c.Balancer.MaxCascadeDepth < 1 {
		return errors.New("balancer.max_cascade_depth must be >= 1")
	}
	if c.Redistributor.Threshold <= c.Redistributor.Target {
		return errors.New("redistributor.threshold must exceed redistributor.target")
	}
	if c.Queue.MaxSize < 1 {
		return errors.New("queue.max_size must be >= 1")
	}
	return nil
}
