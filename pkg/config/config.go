package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all runtime configuration
type Config struct {
	// Warehouse settings
	WarehouseDSN   string
	QueryTimeout   time.Duration
	BatchSize      int
	MaxRows        int
	LookbackPeriod time.Duration
	QueryRateLimit int // warehouse queries per second

	// Concurrency settings
	Concurrency int

	// Output settings
	OutputDir string
	Format    string

	// Analysis settings
	Thresholds Thresholds

	// Baseline settings
	BaselinePath   string
	UpdateBaseline bool

	// Server settings
	ServerPort int

	// Operational flags
	Verbose bool
	DryRun  bool
}

// Thresholds holds the static anomaly-detection policy. Values never adapt
// at runtime; they come from defaults, the config file, or flags.
type Thresholds struct {
	LongRunningMinutes float64 `yaml:"long_running_minutes" validate:"gte=0"`
	FailureRate        float64 `yaml:"failure_rate" validate:"gte=0"`
	TopNLongRunning    int     `yaml:"top_n_long_running" validate:"gt=0"`
	TopNHighFailure    int     `yaml:"top_n_high_failure" validate:"gt=0"`
}

var validate = validator.New()

// Validate rejects threshold values that signal a caller bug: negative
// thresholds or non-positive top-N limits.
func (t Thresholds) Validate() error {
	if err := validate.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0]
			return fmt.Errorf("invalid threshold configuration: %s failed %q constraint (value %v)",
				field.Field(), field.Tag(), field.Value())
		}
		return fmt.Errorf("invalid threshold configuration: %w", err)
	}
	return nil
}

// DefaultThresholds returns the documented threshold defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LongRunningMinutes: 120,
		FailureRate:        0.5,
		TopNLongRunning:    50,
		TopNHighFailure:    50,
	}
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		QueryTimeout:   5 * time.Minute,
		BatchSize:      50000,
		MaxRows:        1000000,
		LookbackPeriod: 7 * 24 * time.Hour, // 7 days
		QueryRateLimit: 5,
		Concurrency:    5,
		OutputDir:      "./report",
		Format:         "json",
		Thresholds:     DefaultThresholds(),
		ServerPort:     8080,
		Verbose:        false,
		DryRun:         false,
	}
}
