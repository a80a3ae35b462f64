package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent   = "searchcore/1.0 (+https://github.com/deidaraiorek/searchcore)"
	DefaultMaxBodySize = 10 << 20
	defaultTimeout     = 30 * time.Second
)

var (
	ErrDisallowed        = errors.New("disallowed by robots.txt")
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	ErrNotHTML           = errors.New("content is not html")
	ErrUnexpectedStatus  = errors.New("unexpected status code")
	ErrNotFound          = errors.New("page not found")
)

// Outcome classifies a fetch attempt.
type Outcome int

const (
	OK Outcome = iota
	NotFound
	Failed
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case NotFound:
		return "not-found"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Fetcher retrieves the raw content of a URL. A non-OK outcome always comes
// with an error describing it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, Outcome, error)
}

// HTTPFetcher fetches pages over plain HTTP, honoring robots.txt and an
// optional per-host request rate.
type HTTPFetcher struct {
	client      *http.Client
	robots      *robotsCache
	userAgent   string
	maxBodySize int64

	limit     rate.Limit
	burst     int
	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

type Option func(*HTTPFetcher)

func WithClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithRateLimit caps requests to any single host at rps per second. A
// non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(f *HTTPFetcher) {
		if rps <= 0 {
			f.limit = rate.Inf
			return
		}
		f.limit = rate.Limit(rps)
		f.burst = max(burst, 1)
	}
}

func WithMaxBodySize(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

func New(userAgent string, opts ...Option) *HTTPFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:   userAgent,
		maxBodySize: DefaultMaxBodySize,
		limit:       rate.Inf,
		burst:       1,
		limiters:    make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.robots = newRobotsCache(f.client, userAgent)
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, urlStr string) ([]byte, Outcome, error) {
	u, err := parseHTTPURL(urlStr)
	if err != nil {
		return nil, Failed, err
	}
	if !f.robots.allowed(ctx, u) {
		return nil, Failed, ErrDisallowed
	}
	if err := f.limiter(u.Host).Wait(ctx); err != nil {
		return nil, Failed, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, Failed, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, Failed, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, NotFound, fmt.Errorf("%w: %d", ErrNotFound, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, Failed, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "html") {
		return nil, Failed, fmt.Errorf("%w: %s", ErrNotHTML, ct)
	}

	// Oversized bodies are truncated rather than rejected.
	content, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, Failed, fmt.Errorf("failed to read body: %w", err)
	}
	return content, OK, nil
}

func (f *HTTPFetcher) limiter(host string) *rate.Limiter {
	f.limiterMu.Lock()
	defer f.limiterMu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.limit, f.burst)
		f.limiters[host] = l
	}
	return l
}

func parseHTTPURL(urlStr string) (*url.URL, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return u, nil
}
