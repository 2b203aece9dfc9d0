package urlutil

import "strings"

const (
	httpsPrefix    = "https://"
	httpsWWWPrefix = "https://www."
)

// NormalizeHost toggles the www. host prefix of an https site root, giving the
// alternate location to probe for a sitemap. Non-https input is returned as-is.
func NormalizeHost(siteURL string) string {
	switch {
	case strings.HasPrefix(siteURL, httpsWWWPrefix):
		return httpsPrefix + strings.TrimPrefix(siteURL, httpsWWWPrefix)
	case strings.HasPrefix(siteURL, httpsPrefix):
		return httpsWWWPrefix + strings.TrimPrefix(siteURL, httpsPrefix)
	default:
		return siteURL
	}
}

// StripTrailingSlash removes a single trailing slash from rawURL.
func StripTrailingSlash(rawURL string) string {
	return strings.TrimSuffix(rawURL, "/")
}
