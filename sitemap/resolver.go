// Package sitemap discovers a site's sitemap and expands it into the flat,
// ordered list of page URLs to crawl.
package sitemap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/lukemcguire/zombiemap/urlutil"
)

// ErrNoSitemapFound is returned when no candidate location serves a
// parseable sitemap.
var ErrNoSitemapFound = errors.New("your site doesn't have a sitemap")

// maxDepth bounds nested sitemap index expansion.
const maxDepth = 4

// Fetcher retrieves the body of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Resolver locates and expands sitemaps.
type Resolver struct {
	fetcher        Fetcher
	logger         *log.Logger
	robotsSitemaps bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for discovery progress and skipped entries.
func WithLogger(logger *log.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRobotsSitemaps enables falling back to the Sitemap: directives of
// robots.txt when no /sitemap.xml is found.
func WithRobotsSitemaps(enabled bool) Option {
	return func(r *Resolver) { r.robotsSitemaps = enabled }
}

// NewResolver creates a Resolver fetching documents through fetcher.
func NewResolver(fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns every page URL listed by the sitemap of siteURL, in sitemap
// order then document order. siteURL must not end with a slash.
//
// The site root is tried first, then its www-toggled variant. Sub-sitemaps
// that fail to load are skipped, so a partial list is returned as long as the
// top-level document parsed.
func (r *Resolver) Resolve(ctx context.Context, siteURL string) ([]string, error) {
	candidates := candidateRoots(siteURL)

	for _, base := range candidates {
		pages, err := r.resolveFrom(ctx, base+"/sitemap.xml")
		if err == nil {
			return pages, nil
		}
		r.logger.Info("sitemap not found, trying next location", "base", base, "err", err)
	}

	if r.robotsSitemaps {
		for _, base := range candidates {
			for _, location := range r.robotsLocations(ctx, base) {
				pages, err := r.resolveFrom(ctx, location)
				if err == nil {
					return pages, nil
				}
				r.logger.Info("robots.txt sitemap unusable", "sitemap", location, "err", err)
			}
		}
	}

	return nil, fmt.Errorf("resolve %s: %w", siteURL, ErrNoSitemapFound)
}

// resolveFrom loads the top-level document at location and expands it.
// Only a failure of this first document is an error.
func (r *Resolver) resolveFrom(ctx context.Context, location string) ([]string, error) {
	doc, err := r.load(ctx, location)
	if err != nil {
		return nil, err
	}
	r.logger.Info("sitemap found", "sitemap", location, "kind", doc.Kind, "entries", len(doc.Locs))

	seen := map[string]bool{location: true}
	pages := make([]string, 0, len(doc.Locs))
	return r.expand(ctx, location, doc, seen, 0, pages), nil
}

func (r *Resolver) expand(ctx context.Context, location string, doc *Document, seen map[string]bool, depth int, pages []string) []string {
	if doc.Kind == KindURLSet {
		for _, loc := range doc.Locs {
			if !urlutil.IsAbsoluteHTTP(loc) {
				r.logger.Warn("skipping invalid page", "page", loc, "sitemap", location)
				continue
			}
			pages = append(pages, loc)
		}
		return pages
	}

	if depth >= maxDepth {
		r.logger.Warn("sitemap index nested too deeply, skipping", "sitemap", location, "depth", depth)
		return pages
	}

	for _, child := range doc.Locs {
		if !urlutil.IsAbsoluteHTTP(child) {
			r.logger.Warn("skipping invalid sitemap location", "sitemap", child, "index", location)
			continue
		}
		if seen[child] {
			r.logger.Debug("sitemap already expanded", "sitemap", child)
			continue
		}
		seen[child] = true

		childDoc, err := r.load(ctx, child)
		if err != nil {
			r.logger.Warn("skipping sitemap", "sitemap", child, "err", err)
			continue
		}
		before := len(pages)
		pages = r.expand(ctx, child, childDoc, seen, depth+1, pages)
		r.logger.Debug("fetched pages from sitemap", "sitemap", child, "pages", len(pages)-before)
	}
	return pages
}

func (r *Resolver) load(ctx context.Context, location string) (*Document, error) {
	body, err := r.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", location, err)
	}
	return Parse(location, body)
}

// candidateRoots returns the site root and its www-toggled variant, without
// duplicates.
func candidateRoots(siteURL string) []string {
	alternate := urlutil.NormalizeHost(siteURL)
	if alternate == siteURL {
		return []string{siteURL}
	}
	return []string{siteURL, alternate}
}
