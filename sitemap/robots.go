package sitemap

import (
	"context"

	"github.com/temoto/robotstxt"
)

// robotsLocations returns the Sitemap: directives declared in base's
// robots.txt. Any failure yields no locations; crawl rules are not consulted.
func (r *Resolver) robotsLocations(ctx context.Context, base string) []string {
	robotsURL := base + "/robots.txt"

	body, err := r.fetcher.Fetch(ctx, robotsURL)
	if err != nil {
		r.logger.Debug("robots.txt unavailable", "url", robotsURL, "err", err)
		return nil
	}

	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		r.logger.Debug("parse robots.txt", "url", robotsURL, "err", err)
		return nil
	}

	return robots.Sitemaps
}
