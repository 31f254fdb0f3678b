package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aluiziolira/phone-reviews/config"
	"github.com/aluiziolira/phone-reviews/metrics"
)

const itemsURL = "http://example.test/data/items.csv"

func newTestFetcher(t *testing.T, retries int) (*Fetcher, *httpmock.MockTransport, *metrics.Metrics, *[]time.Duration) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.CacheDir = t.TempDir()
	cfg.MaxRetries = retries
	cfg.RetryBackoff = 100 * time.Millisecond
	cfg.RetryBackoffMax = 150 * time.Millisecond

	m := metrics.New("test")
	f := New(cfg, m)
	transport := httpmock.NewMockTransport()
	f.collector.WithTransport(transport)

	var waits []time.Duration
	f.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return f, transport, m, &waits
}

func TestFetchWritesCacheFile(t *testing.T) {
	f, transport, m, _ := newTestFetcher(t, 0)
	transport.RegisterResponder("GET", itemsURL, httpmock.NewStringResponder(http.StatusOK, "asin,brand\n"))

	path, err := f.Fetch(context.Background(), itemsURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if want := filepath.Join(f.cfg.CacheDir, "items.csv"); path != want {
		t.Fatalf("path=%q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cached file: %v", err)
	}
	if string(data) != "asin,brand\n" {
		t.Fatalf("cached body=%q", data)
	}
	if got := testutil.ToFloat64(m.FetchRequests.WithLabelValues("completed")); got != 1 {
		t.Fatalf("completed requests=%v, want 1", got)
	}
}

func TestFetchRetriesTransientStatus(t *testing.T) {
	f, transport, m, waits := newTestFetcher(t, 2)

	calls := 0
	transport.RegisterResponder("GET", itemsURL, func(req *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return httpmock.NewStringResponse(http.StatusServiceUnavailable, ""), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
	})

	if _, err := f.Fetch(context.Background(), itemsURL); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d, want 3", calls)
	}
	if want := []time.Duration{100 * time.Millisecond, 150 * time.Millisecond}; fmt.Sprint(*waits) != fmt.Sprint(want) {
		t.Fatalf("waits=%v, want %v", *waits, want)
	}
	if got := testutil.ToFloat64(m.FetchRetries); got != 2 {
		t.Fatalf("retries=%v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FetchErrors.WithLabelValues("server")); got != 2 {
		t.Fatalf("server errors=%v, want 2", got)
	}
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	f, transport, _, waits := newTestFetcher(t, 3)
	transport.RegisterResponder("GET", itemsURL, httpmock.NewStringResponder(http.StatusNotFound, ""))

	_, err := f.Fetch(context.Background(), itemsURL)
	var fe *Error
	if !errors.As(err, &fe) || fe.Kind != KindNotFound || fe.Status != http.StatusNotFound {
		t.Fatalf("expected not_found error with status 404, got %v", err)
	}
	if len(*waits) != 0 {
		t.Fatalf("not found should not be retried, waited %v", *waits)
	}
	if n := transport.GetTotalCallCount(); n != 1 {
		t.Fatalf("calls=%d, want 1", n)
	}
	if _, err := os.Stat(filepath.Join(f.cfg.CacheDir, "items.csv")); !os.IsNotExist(err) {
		t.Fatalf("no file should be cached on failure, stat err=%v", err)
	}
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	f, transport, _, _ := newTestFetcher(t, 1)
	transport.RegisterResponder("GET", itemsURL, httpmock.NewStringResponder(http.StatusTooManyRequests, ""))

	_, err := f.Fetch(context.Background(), itemsURL)
	if kind := KindOf(err); kind != KindRateLimited {
		t.Fatalf("kind=%q, want %q (err %v)", kind, KindRateLimited, err)
	}
	if n := transport.GetTotalCallCount(); n != 2 {
		t.Fatalf("calls=%d, want 2", n)
	}
}

func TestFetchCancelled(t *testing.T) {
	f, _, _, _ := newTestFetcher(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, itemsURL); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	f, transport, _, _ := newTestFetcher(t, 0)
	transport.RegisterResponder("GET", itemsURL, httpmock.NewStringResponder(http.StatusOK, "x"))

	local, err := f.Resolve(context.Background(), "items.xlsx")
	if err != nil || local != "items.xlsx" {
		t.Fatalf("local source changed: %q, %v", local, err)
	}
	remote, err := f.Resolve(context.Background(), itemsURL)
	if err != nil {
		t.Fatalf("resolve remote: %v", err)
	}
	if filepath.Base(remote) != "items.csv" {
		t.Fatalf("remote path=%q", remote)
	}
}

func TestDestinationRejectsBareHost(t *testing.T) {
	f, _, _, _ := newTestFetcher(t, 0)
	if _, err := f.destination("http://example.test/"); err == nil {
		t.Fatal("expected error for url without file name")
	}
}

func TestBackoffCapped(t *testing.T) {
	f, _, _, _ := newTestFetcher(t, 0)
	f.cfg.RetryBackoff = 200 * time.Millisecond
	f.cfg.RetryBackoffMax = 500 * time.Millisecond

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 200 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{4, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := f.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   Kind
		transient  bool
	}{
		{name: "nil", err: nil, statusCode: 0, expected: KindUnknown},
		{name: "context timeout", err: context.DeadlineExceeded, expected: KindTimeout, transient: true},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, expected: KindTimeout, transient: true},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: KindConnection, transient: true},
		{name: "forbidden", statusCode: http.StatusForbidden, expected: KindForbidden},
		{name: "not found", statusCode: http.StatusNotFound, expected: KindNotFound},
		{name: "rate limited", statusCode: http.StatusTooManyRequests, expected: KindRateLimited, transient: true},
		{name: "bad gateway", err: errors.New("Bad Gateway"), statusCode: http.StatusBadGateway, expected: KindServer, transient: true},
		{name: "other", err: errors.New("some other error"), expected: KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyError(tt.err, tt.statusCode)
			if got := KindOf(classified); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
			if got := KindOf(classified).Transient(); got != tt.transient {
				t.Fatalf("transient=%v, want %v", got, tt.transient)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	withStatus := &Error{Kind: KindNotFound, Status: http.StatusNotFound, Err: errors.New("Not Found")}
	if got, want := withStatus.Error(), "not_found (http 404): Not Found"; got != want {
		t.Fatalf("Error()=%q, want %q", got, want)
	}
	dial := &Error{Kind: KindConnection, Err: errors.New("connection refused")}
	if got, want := dial.Error(), "connection: connection refused"; got != want {
		t.Fatalf("Error()=%q, want %q", got, want)
	}
}
