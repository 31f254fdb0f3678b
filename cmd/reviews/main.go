package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/phone-reviews/config"
	"github.com/aluiziolira/phone-reviews/controller"
	"github.com/aluiziolira/phone-reviews/fetch"
	"github.com/aluiziolira/phone-reviews/metrics"
)

func main() {
	os.Exit(run())
}

func run() int {
	envFile := ".env"
	if value, ok := os.LookupEnv(config.EnvPrefix + "ENV_FILE"); ok {
		envFile = value
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	flag.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database file")
	flag.StringVar(&cfg.ItemsSource, "items", cfg.ItemsSource, "Items source (.xlsx, .csv or http(s) URL)")
	flag.StringVar(&cfg.ReviewsSource, "reviews", cfg.ReviewsSource, "Reviews source (.xlsx, .csv or http(s) URL)")
	flag.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Directory for downloaded sources")
	flag.StringVar(&cfg.WorkbookFile, "workbook", cfg.WorkbookFile, "Comparison workbook output")
	flag.StringVar(&cfg.ReportFile, "report", cfg.ReportFile, "Text report output")
	flag.StringVar(&cfg.ChartsFile, "charts", cfg.ChartsFile, "Charts HTML output")
	flag.StringVar(&cfg.SummaryTable, "summary-table", cfg.SummaryTable, "Review summary table name")
	flag.IntVar(&cfg.SummaryYear, "year", cfg.SummaryYear, "Year used by the summary and the product report")
	flag.IntVar(&cfg.RatingFromYear, "rating-from", cfg.RatingFromYear, "First year of the brand rating chart")
	flag.IntVar(&cfg.RatingToYear, "rating-to", cfg.RatingToYear, "Last year of the brand rating chart")
	flag.StringVar(&cfg.KeywordBucket, "bucket", cfg.KeywordBucket, "Keyword mention bucket: month or year")
	flag.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Maximum retry attempts per download")
	flag.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Initial retry backoff")
	flag.DurationVar(&cfg.RetryBackoffMax, "retry-backoff-max", cfg.RetryBackoffMax, "Maximum retry backoff")
	flag.DurationVar(&cfg.FetchTimeout, "timeout", cfg.FetchTimeout, "Download timeout")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flag.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write metrics in textfile format on exit")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	flag.Parse()

	runID := uuid.NewString()
	logger, level := newLogger(cfg.Verbose, os.Stderr)
	slog.SetDefault(logger.With(slog.String("run_id", runID)))
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(runID)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Debug("starting session",
		slog.String("db", cfg.DatabasePath),
		slog.String("items", cfg.ItemsSource),
		slog.String("reviews", cfg.ReviewsSource),
	)

	c, err := controller.New(cfg, os.Stdin, os.Stdout, fetch.New(cfg, m), m)
	if err != nil {
		slog.Error("build session", slog.Any("error", err))
		return 1
	}
	code := 0
	if err := c.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("interrupted")
		} else {
			slog.Error("session failed", slog.Any("error", err))
			code = 1
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}
	if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
		slog.Error("metrics textfile", slog.Any("error", err))
	}
	return code
}

func newLogger(verbose bool, w *os.File) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(w) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
