package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty database",
			mutate: func(cfg *Config) {
				cfg.DatabasePath = ""
			},
			wantErr: "database path",
		},
		{
			name: "missing reviews source",
			mutate: func(cfg *Config) {
				cfg.ReviewsSource = ""
			},
			wantErr: "sources are required",
		},
		{
			name: "summary table injection",
			mutate: func(cfg *Config) {
				cfg.SummaryTable = "review_summary; drop table items"
			},
			wantErr: "valid identifier",
		},
		{
			name: "inverted year range",
			mutate: func(cfg *Config) {
				cfg.RatingFromYear = 2020
				cfg.RatingToYear = 2019
			},
			wantErr: "year range",
		},
		{
			name: "unknown bucket",
			mutate: func(cfg *Config) {
				cfg.KeywordBucket = "week"
			},
			wantErr: "keyword bucket",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.FetchTimeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 5 * time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "remote source without cache dir",
			mutate: func(cfg *Config) {
				cfg.ItemsSource = "https://example.test/items.xlsx"
				cfg.CacheDir = ""
			},
			wantErr: "cache dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("REVIEWS_DATABASE", "other.db")
	t.Setenv("REVIEWS_SUMMARY_YEAR", "2018")
	t.Setenv("REVIEWS_RETRY_BACKOFF", "1s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabasePath != "other.db" {
		t.Fatalf("database=%q, want other.db", cfg.DatabasePath)
	}
	if cfg.SummaryYear != 2018 {
		t.Fatalf("summary year=%d, want 2018", cfg.SummaryYear)
	}
	if cfg.RetryBackoff != time.Second {
		t.Fatalf("retry backoff=%s, want 1s", cfg.RetryBackoff)
	}
	if cfg.ItemsSource != "items.xlsx" {
		t.Fatalf("unset variables should keep defaults, got %q", cfg.ItemsSource)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("REVIEWS_REPORT_FILE=from-dotenv.txt\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("REVIEWS_REPORT_FILE") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReportFile != "from-dotenv.txt" {
		t.Fatalf("report file=%q, want from-dotenv.txt", cfg.ReportFile)
	}
}

func TestLoadMissingDotEnvIgnored(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}
}

func TestIsRemote(t *testing.T) {
	if !IsRemote("HTTPS://example.test/items.xlsx") {
		t.Fatal("expected https URL to be remote")
	}
	if IsRemote("items.xlsx") {
		t.Fatal("expected local path to be local")
	}
}
