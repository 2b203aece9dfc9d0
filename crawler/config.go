package crawler

import (
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lukemcguire/zombiemap/fetch"
)

// Config holds crawler configuration.
type Config struct {
	UserAgent      string            // User agent sent with every request (default: desktop Chrome)
	RequestTimeout time.Duration     // Per-request timeout (default 30s)
	MaxRedirects   int               // Redirect hops followed per request (default 5)
	Concurrency    int               // Link checks in flight per page (default 1)
	RateLimit      int               // Requests per second across the run, 0 for unlimited
	AdaptiveRTT    time.Duration     // Target RTT for adaptive throttling, 0 keeps RateLimit fixed
	RetryPolicy    fetch.RetryPolicy // Retries for sitemap and page fetches
	LowMemory      bool              // Use the disk-backed bloom filter as the visited set
	RobotsSitemaps bool              // Fall back to robots.txt Sitemap: directives
	Logger         *log.Logger       // Destination for crawl logs (default: discard)
	Transport      http.RoundTripper // Round tripper for all requests (default: pooled http.Transport)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:      fetch.DefaultUserAgent,
		RequestTimeout: fetch.DefaultTimeout,
		MaxRedirects:   fetch.DefaultMaxRedirects,
		Concurrency:    1,
		RetryPolicy:    fetch.DefaultRetryPolicy(),
	}
}

func (cfg Config) withDefaults() Config {
	if cfg.UserAgent == "" {
		cfg.UserAgent = fetch.DefaultUserAgent
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = fetch.DefaultTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = fetch.DefaultMaxRedirects
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	return cfg
}
