// Package crawler checks every page listed in a site's sitemap for broken
// references and streams progress as a sequence of events.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/lukemcguire/zombiemap/fetch"
	"github.com/lukemcguire/zombiemap/result"
	"github.com/lukemcguire/zombiemap/sitemap"
	"github.com/lukemcguire/zombiemap/urlutil"
)

// ErrMissingInput is returned by Stream when the site URL is empty.
var ErrMissingInput = errors.New("site URL is required")

// Crawler resolves a site's sitemap and verifies the references of each page.
// A Crawler is safe for concurrent use; every Stream call is an independent run.
type Crawler struct {
	cfg      Config
	logger   *log.Logger
	resolver *sitemap.Resolver
	scanner  *Scanner
	verifier *Verifier
}

// New creates a Crawler with the given configuration.
func New(cfg Config) *Crawler {
	cfg = cfg.withDefaults()

	client := fetch.New(fetch.Options{
		Timeout:      cfg.RequestTimeout,
		UserAgent:    cfg.UserAgent,
		MaxRedirects: cfg.MaxRedirects,
		RateLimit:    cfg.RateLimit,
		AdaptiveRTT:  cfg.AdaptiveRTT,
		Retry:        cfg.RetryPolicy,
		Logger:       cfg.Logger,
		Transport:    cfg.Transport,
	})

	return &Crawler{
		cfg:    cfg,
		logger: cfg.Logger,
		resolver: sitemap.NewResolver(client,
			sitemap.WithLogger(cfg.Logger),
			sitemap.WithRobotsSitemaps(cfg.RobotsSitemaps),
		),
		scanner:  NewScanner(client),
		verifier: NewVerifier(client, cfg.Logger),
	}
}

// Stream starts a crawl of siteURL. Nothing happens until the returned
// sequence is iterated. The sequence yields EventInit, then EventChecked per
// page, and ends with EventCompleted, or with a single EventError when no
// sitemap is found or ctx is cancelled. Stopping the iteration early
// abandons the run.
func (c *Crawler) Stream(ctx context.Context, siteURL string) (iter.Seq[Event], error) {
	siteURL = strings.TrimSpace(siteURL)
	if siteURL == "" {
		return nil, ErrMissingInput
	}
	siteURL = urlutil.StripTrailingSlash(siteURL)

	return func(yield func(Event) bool) {
		r := c.newRun(siteURL)
		defer r.close()
		r.execute(ctx, yield)
	}, nil
}

// Run crawls siteURL to completion and returns its result.
func (c *Crawler) Run(ctx context.Context, siteURL string) (*result.Result, error) {
	events, err := c.Stream(ctx, siteURL)
	if err != nil {
		return nil, err
	}
	for ev := range events {
		if !ev.Terminal() {
			continue
		}
		if ev.Kind == EventError {
			return nil, ev.Err
		}
		return ev.Result(), nil
	}
	return nil, fmt.Errorf("crawl %s: stream ended without a terminal event", siteURL)
}

// run holds the state of one crawl.
type run struct {
	c       *Crawler
	site    string
	logger  *log.Logger
	visited VisitedSet
	flights singleflight.Group
	started time.Time

	mu           sync.Mutex
	broken       []result.BrokenLink
	linksChecked int

	stats result.CrawlStats
}

func (c *Crawler) newRun(site string) *run {
	logger := c.logger.With("site", site)

	var visited VisitedSet = NewMemorySet()
	if c.cfg.LowMemory {
		bloomSet, err := NewBloomSet()
		if err != nil {
			logger.Warn("falling back to in-memory visited set", "err", err)
		} else {
			visited = bloomSet
		}
	}

	return &run{
		c:       c,
		site:    site,
		logger:  logger,
		visited: visited,
		started: time.Now(),
	}
}

func (r *run) close() {
	if err := r.visited.Close(); err != nil {
		r.logger.Warn("close visited set", "err", err)
	}
}

func (r *run) execute(ctx context.Context, yield func(Event) bool) {
	pages, err := r.c.resolver.Resolve(ctx, r.site)
	if err != nil {
		r.logger.Error("crawl failed", "err", err)
		yield(errorEvent(err))
		return
	}

	r.stats.TotalPages = len(pages)
	r.logger.Info("starting crawl", "pages", len(pages))
	if !yield(Event{Kind: EventInit, TotalPages: len(pages)}) {
		return
	}

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("crawl cancelled", "processed", i, "err", err)
			yield(errorEvent(fmt.Errorf("crawl cancelled: %w", err)))
			return
		}

		if !urlutil.IsAbsoluteHTTP(page) {
			r.logger.Warn("skipping invalid page URL", "page", page)
			r.stats.PagesSkipped++
			continue
		}

		links, err := r.processPage(ctx, page)
		if err != nil {
			r.logger.Warn("error processing page", "page", page, "status", fetch.StatusCodeOf(err), "err", err)
			r.stats.PagesSkipped++
			continue
		}

		r.stats.PagesChecked++
		if !yield(Event{Kind: EventChecked, Page: page, Links: links, ProcessedPages: i + 1}) {
			return
		}
	}

	yield(r.completed())
}

// processPage scans page and verifies its references. It returns the number
// of candidates found. Broken links are recorded in candidate order.
func (r *run) processPage(ctx context.Context, page string) (links int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic processing %s: %v", page, p)
		}
	}()

	r.logger.Info("processing page", "page", page)
	candidates, err := r.c.scanner.Scan(ctx, page)
	if err != nil {
		return 0, err
	}

	found := make([]*result.BrokenLink, len(candidates))
	var group errgroup.Group
	group.SetLimit(r.c.cfg.Concurrency)

	for i, cand := range candidates {
		if !urlutil.ShouldFollow(cand.Target) {
			continue
		}
		link, err := urlutil.Resolve(cand.Target, page)
		if err != nil {
			r.logger.Warn("skipping unresolvable reference", "target", cand.Target, "page", page, "err", err)
			continue
		}

		group.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("panic verifying link", "link", link, "panic", p)
				}
			}()

			status, checked := r.verify(ctx, link)
			if !checked || !status.Broken {
				return nil
			}
			r.logger.Info("broken link found", "link", link, "page", page, "status", status.StatusCode)
			found[i] = &result.BrokenLink{
				PageURL:    page,
				Link:       link,
				LinkText:   cand.Text,
				StatusCode: status.StatusCode,
			}
			return nil
		})
	}
	_ = group.Wait()

	r.mu.Lock()
	for _, bl := range found {
		if bl != nil {
			r.broken = append(r.broken, *bl)
		}
	}
	r.mu.Unlock()

	return len(candidates), nil
}

type verification struct {
	status  Status
	skipped bool
}

// verify checks link unless it is already known to be alive. Concurrent
// checks of the same link share one request. The second result is false
// when the link was skipped.
func (r *run) verify(ctx context.Context, link string) (Status, bool) {
	if r.visited.Contains(link) {
		r.logger.Debug("skipping already visited link", "link", link)
		return Status{}, false
	}

	v, _, _ := r.flights.Do(link, func() (any, error) {
		if r.visited.Contains(link) {
			return verification{skipped: true}, nil
		}
		status := r.c.verifier.Check(ctx, link)

		r.mu.Lock()
		r.linksChecked++
		r.mu.Unlock()

		if !status.Broken {
			r.visited.Add(link)
		}
		return verification{status: status}, nil
	})

	out := v.(verification)
	return out.status, !out.skipped
}

func (r *run) completed() Event {
	r.mu.Lock()
	broken := make([]result.BrokenLink, len(r.broken))
	copy(broken, r.broken)
	stats := r.stats
	stats.LinksChecked = r.linksChecked
	r.mu.Unlock()

	stats.BrokenCount = len(broken)
	stats.Duration = time.Since(r.started)

	r.logger.Info("crawl completed",
		"pages", stats.PagesChecked,
		"links", stats.LinksChecked,
		"broken", stats.BrokenCount,
		"duration", stats.Duration.Round(time.Millisecond),
	)
	return Event{Kind: EventCompleted, BrokenLinks: broken, Stats: stats}
}

func errorEvent(err error) Event {
	return Event{Kind: EventError, Message: err.Error(), Err: err}
}
