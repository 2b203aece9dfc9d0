package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/zombiemap/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	cellStyle        = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// RenderSummary produces a Lip Gloss styled summary of crawl results.
func RenderSummary(res *result.Result) string {
	if res == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder
	elapsed := res.Stats.Duration.Round(time.Millisecond)

	if len(res.BrokenLinks) == 0 {
		builder.WriteString(successStyle.Render("No broken links found!"))
		builder.WriteString("\n")
		builder.WriteString(dimStyle.Render(fmt.Sprintf(
			"Checked %d pages and %d links in %s",
			res.Stats.PagesChecked, res.Stats.LinksChecked, elapsed,
		)))
		builder.WriteString("\n")
		return builder.String()
	}

	grouped := make(map[result.Category][]result.BrokenLink)
	for _, link := range res.BrokenLinks {
		cat := result.CategoryOf(link)
		grouped[cat] = append(grouped[cat], link)
	}

	for _, cat := range result.Categories {
		links := grouped[cat]
		if len(links) == 0 {
			continue
		}

		builder.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", cat.Label(), len(links))))
		builder.WriteString("\n")

		rows := make([][]string, 0, len(links))
		for _, link := range links {
			rows = append(rows, []string{link.Link, strconv.Itoa(link.StatusCode), link.LinkText, link.PageURL})
		}

		catTable := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("Link", "Status", "Text", "Found On").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 1 {
					return statusErrorStyle
				}
				return cellStyle
			}).
			Rows(rows...)

		builder.WriteString(catTable.Render())
		builder.WriteString("\n\n")
	}

	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"Found %d broken links on %d of %d pages (%d links checked, %s)",
		res.Stats.BrokenCount,
		res.Stats.PagesChecked,
		res.Stats.TotalPages,
		res.Stats.LinksChecked,
		elapsed,
	)))
	builder.WriteString("\n")

	return builder.String()
}
