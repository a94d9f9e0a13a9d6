package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("failed to restore working directory: %v", err)
		}
	})
}

func TestLoadFileDiscoveryMissingIsNotAnError(t *testing.T) {
	chdir(t, t.TempDir())

	fc, err := LoadFile("")
	if err != nil {
		t.Fatalf("expected missing discovered config to be allowed, got %v", err)
	}
	if fc != nil {
		t.Fatalf("expected nil config when nothing is discovered, got %+v", fc)
	}
}

func TestLoadFileExplicitMissingIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadFileDiscoversDefaultName(t *testing.T) {
	tempDir := t.TempDir()
	chdir(t, tempDir)

	content := "warehouse_dsn: token:dapi123@dbc-test.cloud.databricks.com:443/sql/1.0/warehouses/abc\nlookback: 14d\n"
	if err := os.WriteFile(filepath.Join(tempDir, DefaultConfigFileYAML), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	fc, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if fc == nil {
		t.Fatal("expected discovered config, got nil")
	}
	if fc.Lookback != "14d" {
		t.Fatalf("expected lookback 14d, got %q", fc.Lookback)
	}
}

func TestLoadFileRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("warehouse_dsn: [unclosed"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestFileConfigApply(t *testing.T) {
	cfg := DefaultConfig()
	fc := &FileConfig{
		WarehouseDSN: "token:dapi123@dbc-test.cloud.databricks.com:443/sql/1.0/warehouses/abc",
		Lookback:     "14d",
		QueryTimeout: "10m",
		OutputDir:    "/tmp/reports",
		Format:       "markdown",
		BaselinePath: "baseline.json",
		Thresholds: &Thresholds{
			LongRunningMinutes: 60,
			FailureRate:        0.25,
			TopNLongRunning:    10,
			TopNHighFailure:    10,
		},
	}

	if err := fc.Apply(cfg); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if cfg.WarehouseDSN != fc.WarehouseDSN {
		t.Fatalf("expected DSN to be applied, got %q", cfg.WarehouseDSN)
	}
	if cfg.LookbackPeriod != 14*24*time.Hour {
		t.Fatalf("expected 14d lookback, got %v", cfg.LookbackPeriod)
	}
	if cfg.QueryTimeout != 10*time.Minute {
		t.Fatalf("expected 10m timeout, got %v", cfg.QueryTimeout)
	}
	if cfg.OutputDir != "/tmp/reports" {
		t.Fatalf("expected output dir override, got %q", cfg.OutputDir)
	}
	if cfg.Format != "markdown" {
		t.Fatalf("expected format override, got %q", cfg.Format)
	}
	if cfg.BaselinePath != "baseline.json" {
		t.Fatalf("expected baseline override, got %q", cfg.BaselinePath)
	}
	if cfg.Thresholds.LongRunningMinutes != 60 || cfg.Thresholds.TopNHighFailure != 10 {
		t.Fatalf("expected thresholds override, got %+v", cfg.Thresholds)
	}
}

func TestFileConfigApplyEmptyFieldsLeaveDefaults(t *testing.T) {
	cfg := DefaultConfig()
	before := *cfg

	if err := (&FileConfig{}).Apply(cfg); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if *cfg != before {
		t.Fatalf("expected defaults untouched, got %+v", cfg)
	}
}

func TestFileConfigApplyRejectsBadDurations(t *testing.T) {
	cases := []struct {
		name string
		fc   FileConfig
		want string
	}{
		{name: "bad_lookback", fc: FileConfig{Lookback: "bad"}, want: "invalid lookback"},
		{name: "bad_query_timeout", fc: FileConfig{QueryTimeout: "bad"}, want: "invalid query_timeout"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fc.Apply(DefaultConfig())
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
