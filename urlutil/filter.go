// Package urlutil classifies references found on crawled pages and resolves
// them to absolute URLs.
package urlutil

import (
	"regexp"
	"strings"
)

// excludedPatterns match administrative, API and feed endpoints along with
// JSON/XML resources. None of them are worth verifying as page links.
var excludedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`wp-json`),
	regexp.MustCompile(`xmlrpc\.php`),
	regexp.MustCompile(`wp-admin`),
	regexp.MustCompile(`wp-login\.php`),
	regexp.MustCompile(`feed`),
	regexp.MustCompile(`comment`),
	regexp.MustCompile(`/wp-includes/`),
	regexp.MustCompile(`/wp-content/`),
	regexp.MustCompile(`\.json$`),
	regexp.MustCompile(`\.xml$`),
}

// skippedPrefixes are in-page anchors and schemes that never hit the network.
var skippedPrefixes = []string{
	"#",
	"data:",
	"mailto:",
	"javascript:",
	"tel:",
	"about:blank",
}

var staticAsset = regexp.MustCompile(`\.(css|js|woff2?|ttf|eot|png|jpg|jpeg|gif|svg|ico)$`)

// cacheBuster marks versioned asset URLs such as style.css?ver=6.4.
const cacheBuster = "?ver="

// IsExcluded reports whether target matches one of the excluded patterns.
func IsExcluded(target string) bool {
	for _, pattern := range excludedPatterns {
		if pattern.MatchString(target) {
			return true
		}
	}
	return false
}

// ShouldFollow reports whether a raw reference target should be resolved and
// verified. Targets are tested as written in the page, before resolution.
func ShouldFollow(target string) bool {
	if target == "" {
		return false
	}
	for _, prefix := range skippedPrefixes {
		if strings.HasPrefix(target, prefix) {
			return false
		}
	}
	if IsExcluded(target) {
		return false
	}
	if staticAsset.MatchString(target) {
		return false
	}
	return !strings.Contains(target, cacheBuster)
}
