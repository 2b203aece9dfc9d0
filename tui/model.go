// Package tui provides the Bubble Tea terminal UI for zombiemap,
// displaying live crawl progress and a styled summary of results.
package tui

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/zombiemap/crawler"
	"github.com/lukemcguire/zombiemap/result"
)

var errStreamEnded = errors.New("crawl ended unexpectedly")

// Model is the Bubble Tea model for the crawl TUI.
type Model struct {
	ctx      context.Context
	cancel   context.CancelFunc
	events   iter.Seq[crawler.Event]
	eventCh  chan crawler.Event
	spinner  spinner.Model
	progress progress.Model

	total     int
	processed int
	links     int
	current   string
	quitting  bool
	done      bool
	result    *result.Result
	err       error
	width     int
}

// NewModel creates a TUI model that renders the given event stream.
// cancel stops the crawl when the user quits.
func NewModel(ctx context.Context, cancel context.CancelFunc, events iter.Seq[crawler.Event]) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:      ctx,
		cancel:   cancel,
		events:   events,
		eventCh:  make(chan crawler.Event, 16),
		spinner:  spin,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Init starts the spinner, the crawl and the event listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCrawl(), waitForEvent(m.eventCh))
}

// startCrawl returns a tea.Cmd that drains the stream into the event channel.
func (m Model) startCrawl() tea.Cmd {
	return func() tea.Msg {
		defer close(m.eventCh)
		for ev := range m.events {
			select {
			case m.eventCh <- ev:
			case <-m.ctx.Done():
				return nil
			}
		}
		return nil
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 20; w > 10 && w < 80 {
			m.progress.Width = w
		}

	case CrawlEventMsg:
		return m.handleEvent(msg.Event)

	case streamClosedMsg:
		if !m.done {
			m.done = true
			m.err = errStreamEnded
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleEvent(ev crawler.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case crawler.EventInit:
		m.total = ev.TotalPages
	case crawler.EventChecked:
		m.processed = ev.ProcessedPages
		m.current = ev.Page
		m.links += ev.Links
	case crawler.EventCompleted:
		m.done = true
		m.result = ev.Result()
		return m, tea.Quit
	case crawler.EventError:
		m.done = true
		m.err = ev.Err
		if m.err == nil {
			m.err = errors.New(ev.Message)
		}
		return m, tea.Quit
	}
	return m, waitForEvent(m.eventCh)
}

func (m Model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.processed) / float64(m.total)
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.result != nil {
		return RenderSummary(m.result)
	}
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	if m.total == 0 {
		return fmt.Sprintf("%s Looking for a sitemap...\n", m.spinner.View())
	}
	return fmt.Sprintf("%s Checking pages %d/%d, %d links found\n%s\n%s\n",
		m.spinner.View(), m.processed, m.total, m.links,
		m.progress.ViewAs(m.percent()),
		dimStyle.Render("  "+m.current))
}

// HasBrokenLinks reports whether the crawl found any broken links.
func (m Model) HasBrokenLinks() bool {
	return m.result != nil && len(m.result.BrokenLinks) > 0
}

// Err returns the error that ended the crawl, if any.
func (m Model) Err() error {
	return m.err
}

// Quitting reports whether the user interrupted the crawl.
func (m Model) Quitting() bool {
	return m.quitting
}
