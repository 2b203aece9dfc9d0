// Package result holds the broken-link records produced by a crawl run and
// writes them in human and machine readable formats.
package result

import "time"

// BrokenLink records a reference on PageURL whose target responded with 404
// or a 5xx status. Records are append-only and never modified.
type BrokenLink struct {
	PageURL    string `json:"pageUrl"`    // The page where the reference was found
	Link       string `json:"link"`       // The resolved target URL
	LinkText   string `json:"linkText"`   // Text content, alt text, or "No text"
	StatusCode int    `json:"statusCode"` // HTTP status of the target
}

// CrawlStats contains aggregate statistics for a crawl run.
type CrawlStats struct {
	TotalPages   int           // Pages listed by the sitemap
	PagesChecked int           // Pages scanned successfully
	PagesSkipped int           // Invalid entries and pages that failed to load
	LinksChecked int           // Verifier calls made
	BrokenCount  int           // Broken link records
	Duration     time.Duration // Total time taken for the run
}

// Result represents the complete output of a crawl run.
type Result struct {
	BrokenLinks []BrokenLink
	Stats       CrawlStats
}
