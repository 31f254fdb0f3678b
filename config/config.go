package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "REVIEWS_"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds pipeline configuration.
type Config struct {
	DatabasePath  string `env:"DATABASE"`
	ItemsSource   string `env:"ITEMS_SOURCE"`
	ReviewsSource string `env:"REVIEWS_SOURCE"`
	CacheDir      string `env:"CACHE_DIR"`

	WorkbookFile string `env:"WORKBOOK_FILE"`
	ReportFile   string `env:"REPORT_FILE"`
	ChartsFile   string `env:"CHARTS_FILE"`

	SummaryTable   string `env:"SUMMARY_TABLE"`
	SummaryYear    int    `env:"SUMMARY_YEAR"`
	RatingFromYear int    `env:"RATING_FROM_YEAR"`
	RatingToYear   int    `env:"RATING_TO_YEAR"`
	TopByReviews   int    `env:"TOP_BY_REVIEWS"`
	TopByRating    int    `env:"TOP_BY_RATING"`
	KeywordBucket  string `env:"KEYWORD_BUCKET"` // month or year
	QueryCacheSize int    `env:"QUERY_CACHE_SIZE"`

	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT"`
	MaxRetries      int           `env:"MAX_RETRIES"`
	RetryBackoff    time.Duration `env:"RETRY_BACKOFF"`
	RetryBackoffMax time.Duration `env:"RETRY_BACKOFF_MAX"`
	UserAgent       string        `env:"USER_AGENT"`

	MetricsAddr string `env:"METRICS_ADDR"`
	MetricsFile string `env:"METRICS_FILE"`
	Verbose     bool   `env:"VERBOSE"`
}

// DefaultConfig returns the file and table names the dataset ships with.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    "phone_reviews_database.db",
		ItemsSource:     "items.xlsx",
		ReviewsSource:   "reviews.xlsx",
		CacheDir:        "data",
		WorkbookFile:    "comparison.xlsx",
		ReportFile:      "sql_review_output.txt",
		ChartsFile:      "charts.html",
		SummaryTable:    "review_summary",
		SummaryYear:     2019,
		RatingFromYear:  2017,
		RatingToYear:    2019,
		TopByReviews:    3,
		TopByRating:     5,
		KeywordBucket:   "month",
		QueryCacheSize:  64,
		FetchTimeout:    30 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    200 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		UserAgent:       "phone-reviews/1.0 (+https://github.com/aluiziolira/phone-reviews)",
	}
}

// Load builds a config from defaults, an optional .env file and REVIEWS_*
// environment variables, in that order of precedence.
func Load(dotenv string) (*Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	cfg := DefaultConfig()
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.ItemsSource == "" || c.ReviewsSource == "" {
		return fmt.Errorf("items and reviews sources are required")
	}
	for _, src := range []string{c.ItemsSource, c.ReviewsSource} {
		if IsRemote(src) {
			if _, err := url.Parse(src); err != nil {
				return fmt.Errorf("invalid source URL %q: %w", src, err)
			}
			if c.CacheDir == "" {
				return fmt.Errorf("cache dir is required for remote sources")
			}
		}
	}
	if c.WorkbookFile == "" || c.ReportFile == "" || c.ChartsFile == "" {
		return fmt.Errorf("output files cannot be empty")
	}
	if !identPattern.MatchString(c.SummaryTable) {
		return fmt.Errorf("summary table %q is not a valid identifier", c.SummaryTable)
	}
	if c.SummaryYear <= 0 {
		return fmt.Errorf("summary year must be positive")
	}
	if c.RatingFromYear <= 0 || c.RatingToYear < c.RatingFromYear {
		return fmt.Errorf("rating year range %d-%d is invalid", c.RatingFromYear, c.RatingToYear)
	}
	if c.TopByReviews <= 0 || c.TopByRating <= 0 {
		return fmt.Errorf("top brand counts must be positive")
	}
	if c.KeywordBucket != "month" && c.KeywordBucket != "year" {
		return fmt.Errorf("keyword bucket must be month or year")
	}
	if c.QueryCacheSize <= 0 {
		return fmt.Errorf("query cache size must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// IsRemote reports whether a source location is an http(s) URL.
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
