// Package fetch provides the outbound HTTP client shared by sitemap
// discovery, page scanning and link verification. It owns the keep-alive
// connection pool, the redirect cap, retries and request throttling.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultUserAgent identifies requests as a desktop browser. Some hosts
	// answer unknown bots with 403 or an empty page.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// DefaultTimeout bounds every request, including redirects and body reads.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRedirects is the number of redirect hops followed per request.
	DefaultMaxRedirects = 5

	// DefaultMaxPageBytes caps HTML page bodies.
	DefaultMaxPageBytes = 10 << 20

	// DefaultMaxDocumentBytes caps sitemap and robots.txt bodies. Sitemaps
	// may be up to 50 MB uncompressed.
	DefaultMaxDocumentBytes = 50 << 20

	drainBytes = 64 << 10
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
	RateLimit    int           // requests per second, 0 for unlimited
	AdaptiveRTT  time.Duration // target RTT for adaptive throttling, 0 keeps the rate fixed
	Retry        RetryPolicy
	Transport    http.RoundTripper
	Logger       *log.Logger

	MaxPageBytes     int64 // body limit for Get
	MaxDocumentBytes int64 // body limit for Fetch
}

// Response is a fully read 2xx response.
type Response struct {
	URL         string // final URL after redirects
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client issues GET requests with a shared connection pool.
type Client struct {
	http      *http.Client
	userAgent string
	retry     RetryPolicy
	throttle  *Throttle
	logger    *log.Logger

	pageLimit     int64
	documentLimit int64
}

// New creates a Client from opts.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.MaxPageBytes <= 0 {
		opts.MaxPageBytes = DefaultMaxPageBytes
	}
	if opts.MaxDocumentBytes <= 0 {
		opts.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	transport := opts.Transport
	if transport == nil {
		pooled := http.DefaultTransport.(*http.Transport).Clone()
		pooled.MaxIdleConns = 100
		pooled.MaxIdleConnsPerHost = 10
		pooled.IdleConnTimeout = 90 * time.Second
		transport = pooled
	}

	maxRedirects := opts.MaxRedirects
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return ErrTooManyRedirects
				}
				return nil
			},
		},
		userAgent: opts.UserAgent,
		retry:     opts.Retry.withDefaults(),
		throttle:  NewThrottle(opts.RateLimit, opts.AdaptiveRTT),
		logger:    logger,

		pageLimit:     opts.MaxPageBytes,
		documentLimit: opts.MaxDocumentBytes,
	}
}

// Get fetches the page at rawURL. Non-2xx responses produce a *StatusError
// and bodies over the page limit a *BodyTooLargeError. Transient failures are
// retried according to the RetryPolicy.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.getRetrying(ctx, rawURL, c.pageLimit)
}

// Fetch returns the body of a document such as a sitemap. It behaves like Get
// with the larger document limit.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.getRetrying(ctx, rawURL, c.documentLimit)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) getRetrying(ctx context.Context, rawURL string, limit int64) (*Response, error) {
	var resp *Response
	err := c.retry.do(ctx, func(attempt int) error {
		if attempt > 1 {
			c.logger.Debug("retrying request", "url", rawURL, "attempt", attempt)
		}
		var getErr error
		resp, getErr = c.get(ctx, rawURL, limit)
		return getErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Status performs a single GET of rawURL and reports the final status code.
// Every status is returned without error. When the request fails after a
// response was received (for example the redirect cap was hit) the last
// status code is returned together with the error.
func (c *Client) Status(ctx context.Context, rawURL string) (int, error) {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		if resp != nil {
			return resp.StatusCode, err
		}
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain a little so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainBytes))
	return resp.StatusCode, nil
}

func (c *Client) get(ctx context.Context, rawURL string, limit int64) (*Response, error) {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainBytes))
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}
	if int64(len(body)) > limit {
		return nil, &BodyTooLargeError{URL: rawURL, Limit: limit}
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// do sends one throttled GET. The caller owns the response body.
func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return resp, fmt.Errorf("get %s: %w", rawURL, err)
	}
	rtt := time.Since(start)
	if c.throttle.ObserveRTT(rtt) {
		c.logger.Debug("request rate adjusted", "rps", c.throttle.CurrentRate(), "rtt", rtt)
	}
	return resp, nil
}
