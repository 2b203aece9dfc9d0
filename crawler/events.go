package crawler

import (
	"encoding/json"
	"fmt"

	"github.com/lukemcguire/zombiemap/result"
)

// EventKind discriminates crawl events. Its value is the "status" field of
// the JSON payload.
type EventKind string

const (
	EventInit      EventKind = "init"
	EventChecked   EventKind = "checked"
	EventCompleted EventKind = "completed"
	EventError     EventKind = "error"
)

// Event reports crawl progress. A run yields one EventInit, one EventChecked
// per processed page and ends with exactly one EventCompleted or EventError.
// Only the fields of the event's kind are meaningful.
type Event struct {
	Kind EventKind

	TotalPages int // init

	Page           string // checked
	Links          int    // checked: references found on Page
	ProcessedPages int    // checked: 1-based index of Page in the sitemap list

	BrokenLinks []result.BrokenLink // completed
	Stats       result.CrawlStats   // completed, not serialized

	Message string // error
	Err     error  // error, not serialized
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == EventCompleted || e.Kind == EventError
}

// Result returns the run result carried by a completed event.
func (e Event) Result() *result.Result {
	return &result.Result{BrokenLinks: e.BrokenLinks, Stats: e.Stats}
}

// MarshalJSON encodes the event as the wire payload of its kind.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EventInit:
		return json.Marshal(struct {
			Status     EventKind `json:"status"`
			TotalPages int       `json:"totalPages"`
		}{e.Kind, e.TotalPages})
	case EventChecked:
		return json.Marshal(struct {
			Status         EventKind `json:"status"`
			Page           string    `json:"page"`
			Links          int       `json:"links"`
			ProcessedPages int       `json:"processedPages"`
		}{e.Kind, e.Page, e.Links, e.ProcessedPages})
	case EventCompleted:
		links := e.BrokenLinks
		if links == nil {
			links = []result.BrokenLink{}
		}
		return json.Marshal(struct {
			Status      EventKind           `json:"status"`
			BrokenLinks []result.BrokenLink `json:"brokenLinks"`
		}{e.Kind, links})
	case EventError:
		return json.Marshal(struct {
			Status  EventKind `json:"status"`
			Message string    `json:"message"`
		}{e.Kind, e.Message})
	default:
		return nil, fmt.Errorf("marshal event: unknown kind %q", e.Kind)
	}
}
