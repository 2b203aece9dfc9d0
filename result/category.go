package result

import "net/http"

// Category groups broken links for display.
type Category string

const (
	CategoryNotFound    Category = "not_found"
	CategoryServerError Category = "server_error"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryNotFound, CategoryServerError}

// CategoryOf returns the category of a broken link. A link is broken on 404
// or on any status of 500 and above, so everything other than 404 is a
// server error.
func CategoryOf(link BrokenLink) Category {
	if link.StatusCode == http.StatusNotFound {
		return CategoryNotFound
	}
	return CategoryServerError
}

// Label returns the heading used for the category in summaries.
func (c Category) Label() string {
	switch c {
	case CategoryNotFound:
		return "Not Found (404)"
	case CategoryServerError:
		return "Server Errors (5xx)"
	default:
		return string(c)
	}
}
