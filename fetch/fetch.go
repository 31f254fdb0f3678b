// Package fetch downloads remote item and review sources into a local cache
// directory so they can be read like local files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/phone-reviews/config"
	"github.com/aluiziolira/phone-reviews/metrics"
)

// Fetcher wraps a colly collector with retry and backoff.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	metrics   *metrics.Metrics
	sleep     func(ctx context.Context, d time.Duration) error
}

// New builds a fetcher from cfg. m may be nil.
func New(cfg *config.Config, m *metrics.Metrics) *Fetcher {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	collector.MaxBodySize = 0
	collector.SetRequestTimeout(cfg.FetchTimeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.FetchTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &Fetcher{cfg: cfg, collector: collector, metrics: m, sleep: sleepContext}
}

// Resolve returns a local path for location, downloading it first when it is
// an http(s) URL.
func (f *Fetcher) Resolve(ctx context.Context, location string) (string, error) {
	if !config.IsRemote(location) {
		return location, nil
	}
	return f.Fetch(ctx, location)
}

// Fetch downloads rawURL into the cache directory and returns the local path.
// Transient failures are retried with exponential backoff.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	dest, err := f.destination(rawURL)
	if err != nil {
		return "", err
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		body, status, err := f.visit(rawURL)
		if err == nil {
			if err := writeFile(dest, body); err != nil {
				return "", err
			}
			slog.Info("source downloaded",
				slog.String("url", rawURL),
				slog.String("path", dest),
				slog.Int("bytes", len(body)),
			)
			return dest, nil
		}

		classified := classifyError(err, status)
		kind := KindOf(classified)
		f.metrics.IncFetchError(string(kind))
		slog.Error("download error",
			slog.String("url", rawURL),
			slog.String("kind", string(kind)),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)

		if !kind.Transient() || attempt >= f.cfg.MaxRetries {
			return "", fmt.Errorf("download %s: %w", rawURL, classified)
		}
		f.metrics.IncRetries()
		if err := f.sleep(ctx, f.backoff(attempt+1)); err != nil {
			return "", err
		}
	}
}

func (f *Fetcher) visit(rawURL string) ([]byte, int, error) {
	c := f.collector.Clone()

	var (
		body   []byte
		status int
		start  time.Time
	)
	c.OnRequest(func(r *colly.Request) {
		start = time.Now()
		f.metrics.IncFetch("started")
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
		f.metrics.IncFetch("completed")
		f.metrics.ObserveFetch(time.Since(start))
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, status, err
	}
	return body, status, nil
}

func (f *Fetcher) destination(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("source url %q must include a host", rawURL)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("source url %q does not name a file", rawURL)
	}
	return filepath.Join(f.cfg.CacheDir, name), nil
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &Error{Kind: KindConnection, Err: err}
	}

	if statusCode != 0 {
		if err == nil {
			err = errors.New(http.StatusText(statusCode))
		}
		switch {
		case statusCode == http.StatusForbidden:
			return &Error{Kind: KindForbidden, Status: statusCode, Err: err}
		case statusCode == http.StatusNotFound:
			return &Error{Kind: KindNotFound, Status: statusCode, Err: err}
		case statusCode == http.StatusTooManyRequests:
			return &Error{Kind: KindRateLimited, Status: statusCode, Err: err}
		case statusCode >= http.StatusInternalServerError:
			return &Error{Kind: KindServer, Status: statusCode, Err: err}
		}
	}

	return err
}

func writeFile(dest string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+"-*.part")
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write download file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close download file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("move download into place: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
