package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFileYAML is the canonical config filename.
	DefaultConfigFileYAML = ".lakewatch.yaml"
	// DefaultConfigFileYML is a compatible alternate config filename.
	DefaultConfigFileYML = ".lakewatch.yml"
)

// FileConfig represents values loaded from a .lakewatch.yaml file.
type FileConfig struct {
	WarehouseDSN string      `yaml:"warehouse_dsn"`
	Lookback     string      `yaml:"lookback"`
	QueryTimeout string      `yaml:"query_timeout"`
	OutputDir    string      `yaml:"output_dir"`
	Format       string      `yaml:"format"`
	BaselinePath string      `yaml:"baseline"`
	Thresholds   *Thresholds `yaml:"thresholds"`
}

// LoadFile reads a config file from an explicit path, or discovers
// .lakewatch.yaml/.lakewatch.yml in the working directory when path is empty.
// A missing discovered file is not an error; a missing explicit file is.
func LoadFile(path string) (*FileConfig, error) {
	explicit := strings.TrimSpace(path) != ""
	candidates := []string{strings.TrimSpace(path)}
	if !explicit {
		candidates = []string{DefaultConfigFileYAML, DefaultConfigFileYML}
	}

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && !explicit {
				continue
			}
			return nil, fmt.Errorf("read config file %s: %w", candidate, err)
		}

		var fc FileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", candidate, err)
		}
		return &fc, nil
	}

	return nil, nil
}

// Apply overlays file values onto cfg. Empty file fields leave cfg untouched.
func (fc *FileConfig) Apply(cfg *Config) error {
	if fc == nil || cfg == nil {
		return nil
	}

	if dsn := strings.TrimSpace(fc.WarehouseDSN); dsn != "" {
		cfg.WarehouseDSN = dsn
	}
	if lookback := strings.TrimSpace(fc.Lookback); lookback != "" {
		parsed, err := ParseDuration(lookback)
		if err != nil {
			return fmt.Errorf("invalid lookback in config file: %w", err)
		}
		cfg.LookbackPeriod = parsed
	}
	if timeout := strings.TrimSpace(fc.QueryTimeout); timeout != "" {
		parsed, err := ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid query_timeout in config file: %w", err)
		}
		cfg.QueryTimeout = parsed
	}
	if dir := strings.TrimSpace(fc.OutputDir); dir != "" {
		cfg.OutputDir = dir
	}
	if format := strings.TrimSpace(fc.Format); format != "" {
		cfg.Format = format
	}
	if baseline := strings.TrimSpace(fc.BaselinePath); baseline != "" {
		cfg.BaselinePath = baseline
	}
	if fc.Thresholds != nil {
		cfg.Thresholds = *fc.Thresholds
	}

	return nil
}
