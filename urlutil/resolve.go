package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// IsHTTPScheme returns true if the URL has an http or https scheme.
// Returns false for empty strings, non-HTTP schemes, or unparseable URLs.
func IsHTTPScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

// IsAbsoluteHTTP reports whether rawURL is an absolute http(s) URL with a host.
// Sitemap entries and page list items failing this check are skipped.
func IsAbsoluteHTTP(rawURL string) bool {
	if !IsHTTPScheme(rawURL) {
		return false
	}
	parsed, err := url.Parse(rawURL)
	return err == nil && parsed.Host != ""
}

// ResolveReference resolves a possibly-relative ref URL against a base URL.
// If ref is absolute, it is returned as-is. Otherwise it is resolved
// relative to base using net/url.URL.ResolveReference.
func ResolveReference(base string, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", base, err)
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse ref URL %q: %w", ref, err)
	}

	resolved := baseURL.ResolveReference(refURL)
	return resolved.String(), nil
}

// Resolve turns a reference target found on sourcePage into an absolute link.
// Targets that already carry an http(s) scheme are returned untouched so the
// reported link matches what the page author wrote.
func Resolve(target, sourcePage string) (string, error) {
	lower := strings.ToLower(target)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return target, nil
	}
	return ResolveReference(sourcePage, target)
}
