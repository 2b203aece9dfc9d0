package sitemap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/lukemcguire/zombiemap/fetch"
)

// fakeFetcher serves canned bodies by URL and records every request.
type fakeFetcher struct {
	mu       sync.Mutex
	bodies   map[string]string
	requests []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, url)
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("get %s: unexpected status 404", url)
	}
	return []byte(body), nil
}

func index(locs ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		body += "<sitemap><loc>" + loc + "</loc></sitemap>"
	}
	return body + "</sitemapindex>"
}

func urlset(locs ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		body += "<url><loc>" + loc + "</loc></url>"
	}
	return body + "</urlset>"
}

func TestResolve_IndexConcatenatesURLSetsInOrder(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://site.com/sitemap.xml":     index("https://site.com/posts.xml", "https://site.com/pages.xml"),
		"https://site.com/posts.xml":       urlset("https://site.com/p1", "/relative", "https://site.com/p2"),
		"https://site.com/pages.xml":       urlset("https://site.com/about", "https://site.com/p1"),
		"https://www.site.com/sitemap.xml": urlset("https://www.site.com/never"),
	}}

	pages, err := NewResolver(fetcher).Resolve(context.Background(), "https://site.com")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	want := []string{"https://site.com/p1", "https://site.com/p2", "https://site.com/about", "https://site.com/p1"}
	if !reflect.DeepEqual(pages, want) {
		t.Errorf("pages = %v, want %v", pages, want)
	}
}

func TestResolve_URLSetAtRoot(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://site.com/sitemap.xml": urlset("https://site.com/", "mailto:x@site.com", "https://site.com/contact"),
	}}

	pages, err := NewResolver(fetcher).Resolve(context.Background(), "https://site.com")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	want := []string{"https://site.com/", "https://site.com/contact"}
	if !reflect.DeepEqual(pages, want) {
		t.Errorf("pages = %v, want %v", pages, want)
	}
}

func TestResolve_FallsBackToWWWVariant(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://www.site.com/sitemap.xml": urlset("https://www.site.com/home"),
	}}

	pages, err := NewResolver(fetcher).Resolve(context.Background(), "https://site.com")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !reflect.DeepEqual(pages, []string{"https://www.site.com/home"}) {
		t.Errorf("pages = %v", pages)
	}

	wantRequests := []string{"https://site.com/sitemap.xml", "https://www.site.com/sitemap.xml"}
	if !reflect.DeepEqual(fetcher.requests, wantRequests) {
		t.Errorf("requests = %v, want %v", fetcher.requests, wantRequests)
	}
}

func TestResolve_UnparseableRootTriesNextCandidate(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://www.site.com/sitemap.xml": `<html><body>soft 404</body></html>`,
		"https://site.com/sitemap.xml":     index("https://site.com/a.xml"),
		"https://site.com/a.xml":           urlset("https://site.com/a"),
	}}

	pages, err := NewResolver(fetcher).Resolve(context.Background(), "https://www.site.com")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !reflect.DeepEqual(pages, []string{"https://site.com/a"}) {
		t.Errorf("pages = %v", pages)
	}
}

func TestResolve_NoSitemapFound(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{}}

	_, err := NewResolver(fetcher).Resolve(context.Background(), "https://site.com")
	if !errors.Is(err, ErrNoSitemapFound) {
		t.Fatalf("expected ErrNoSitemapFound, got %v", err)
	}

	wantRequests := []string{"https://site.com/sitemap.xml", "https://www.site.com/sitemap.xml"}
	if !reflect.DeepEqual(fetcher.requests, wantRequests) {
		t.Errorf("requests = %v, want %v", fetcher.requests, wantRequests)
	}
}

func TestResolve_HTTPSiteTriedOnce(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{}}

	_, err := NewResolver(fetcher).Resolve(context.Background(), "http://site.com")
	if !errors.Is(err, ErrNoSitemapFound) {
		t.Fatalf("expected ErrNoSitemapFound, got %v", err)
	}
	if len(fetcher.requests) != 1 {
		t.Errorf("requests = %v, want a single attempt", fetcher.requests)
	}
}

func TestResolve_SkipsFailingSubSitemaps(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://site.com/sitemap.xml": index("https://site.com/missing.xml", "https://site.com/broken.xml", "ftp://site.com/x.xml", "https://site.com/ok.xml"),
		"https://site.com/broken.xml":  `<urlset><url>`,
		"https://site.com/ok.xml":      urlset("https://site.com/ok"),
	}}

	pages, err := NewResolver(fetcher).Resolve(context.Background(), "https://site.com")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !reflect.DeepEqual(pages, []string{"https://site.com/ok"}) {
		t.Errorf("pages = %v", pages)
	}
}

func TestResolve_EmptyIndexYieldsNoPages(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://site.com/sitemap.xml": index(),
	}}

	pages, err := NewResolver(fetcher).Resolve(context.Background(), "https://site.com")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("pages = %v, want none", pages)
	}
}

func TestResolve_NestedIndexAndCycles(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://site.com/sitemap.xml": index("https://site.com/nested.xml", "https://site.com/tail.xml"),
		"https://site.com/nested.xml":  index("https://site.com/leaf.xml", "https://site.com/sitemap.xml"),
		"https://site.com/leaf.xml":    urlset("https://site.com/leaf"),
		"https://site.com/tail.xml":    urlset("https://site.com/tail"),
	}}

	pages, err := NewResolver(fetcher).Resolve(context.Background(), "https://site.com")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	want := []string{"https://site.com/leaf", "https://site.com/tail"}
	if !reflect.DeepEqual(pages, want) {
		t.Errorf("pages = %v, want %v", pages, want)
	}
}

func TestResolve_RobotsSitemapFallback(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://site.com/robots.txt":        "User-agent: *\nDisallow: /private/\nSitemap: https://site.com/sitemap_index.xml\n",
		"https://site.com/sitemap_index.xml": index("https://site.com/pages.xml"),
		"https://site.com/pages.xml":         urlset("https://site.com/private/page"),
	}}

	_, err := NewResolver(fetcher).Resolve(context.Background(), "https://site.com")
	if !errors.Is(err, ErrNoSitemapFound) {
		t.Fatalf("robots fallback must be opt-in, got %v", err)
	}

	pages, err := NewResolver(fetcher, WithRobotsSitemaps(true)).Resolve(context.Background(), "https://site.com")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	// Disallow rules are not enforced.
	if !reflect.DeepEqual(pages, []string{"https://site.com/private/page"}) {
		t.Errorf("pages = %v", pages)
	}
}

func TestResolve_URLSetLargerThanPageLimit(t *testing.T) {
	const entries = 50000
	padding := strings.Repeat("x", 240)

	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for i := range entries {
		fmt.Fprintf(&body, "<url><loc>https://site.com/%s/%d</loc></url>", padding, i)
	}
	body.WriteString("</urlset>")
	if body.Len() <= fetch.DefaultMaxPageBytes {
		t.Fatalf("sitemap body is %d bytes, want more than %d", body.Len(), fetch.DefaultMaxPageBytes)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sitemap.xml" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(body.String()))
	}))
	t.Cleanup(srv.Close)

	client := fetch.New(fetch.Options{Retry: fetch.RetryPolicy{MaxRetries: -1}})
	pages, err := NewResolver(client).Resolve(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(pages) != entries {
		t.Fatalf("len(pages) = %d, want %d", len(pages), entries)
	}
	if want := fmt.Sprintf("https://site.com/%s/%d", padding, entries-1); pages[entries-1] != want {
		t.Errorf("last page = %q, want %q", pages[entries-1], want)
	}
}
