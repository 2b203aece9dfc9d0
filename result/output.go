package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteJSON writes the broken links as a formatted JSON array to the writer.
// Field names match the completed event payload.
func WriteJSON(w io.Writer, links []BrokenLink) error {
	if links == nil {
		links = []BrokenLink{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(links); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteCSV writes the broken links as CSV to the writer.
// Always includes a header row, even if there are no broken links.
// Column order: page_url, link, link_text, status_code
func WriteCSV(w io.Writer, links []BrokenLink) error {
	cw := csv.NewWriter(w)

	header := []string{"page_url", "link", "link_text", "status_code"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, link := range links {
		record := []string{
			link.PageURL,
			link.Link,
			link.LinkText,
			strconv.Itoa(link.StatusCode),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", link.Link, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}
