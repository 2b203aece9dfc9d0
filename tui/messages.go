package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/zombiemap/crawler"
)

// CrawlEventMsg carries one event from the crawl stream.
type CrawlEventMsg struct {
	Event crawler.Event
}

// streamClosedMsg signals the event channel was closed.
type streamClosedMsg struct{}

// waitForEvent returns a tea.Cmd that reads one event from the channel.
func waitForEvent(ch <-chan crawler.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return CrawlEventMsg{Event: ev}
	}
}
