package result

import (
	"fmt"
	"io"
)

// PrintResults writes broken link details and a summary to w.
func PrintResults(w io.Writer, res *Result) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	if len(res.BrokenLinks) == 0 {
		writef("No broken links found!\n")
	} else {
		writef("Broken Links:\n")
		for i, link := range res.BrokenLinks {
			writef("  Link: %s\n", link.Link)
			writef("  Status: %d\n", link.StatusCode)
			writef("  Text: %s\n", link.LinkText)
			writef("  Found on: %s\n", link.PageURL)
			if i < len(res.BrokenLinks)-1 {
				writef("\n")
			}
		}
	}
	writef("Checked %d of %d pages and %d links, found %d broken links\n",
		res.Stats.PagesChecked, res.Stats.TotalPages, res.Stats.LinksChecked, res.Stats.BrokenCount)
}
