// Package tui shows the progress of an atlas run in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/marben/mandel_atlas/internal/atlas"
)

// recentTiles is how many finished tiles are listed under the bar.
const recentTiles = 8

// EventMsg wraps a scheduler event for the bubbletea program.
type EventMsg atlas.Event

// DoneMsg is sent once the run has returned.
type DoneMsg struct {
	Summary atlas.Summary
	Err     error
}

type Model struct {
	bar     progress.Model
	printer *message.Printer
	cancel  context.CancelFunc
	start   time.Time

	progress  atlas.Progress
	recent    []string
	canceling bool

	done    bool
	summary atlas.Summary
	err     error
}

// New returns a model for an atlas of total tiles. cancel is called when
// the user asks to stop.
func New(total int, cancel context.CancelFunc) Model {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 60
	return Model{
		bar:      bar,
		printer:  message.NewPrinter(language.English),
		cancel:   cancel,
		start:    time.Now(),
		progress: atlas.Progress{Total: total},
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(80, msg.Width-8))
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// workers finish their current tile, then DoneMsg quits
			if !m.canceling && m.cancel != nil {
				m.canceling = true
				m.cancel()
			}
		}
	case EventMsg:
		if msg.Progress.Done >= m.progress.Done {
			m.progress = msg.Progress
		}
		if msg.Kind == atlas.TileFinished {
			m.recent = append(m.recent, m.tileLine(msg.Result))
			if len(m.recent) > recentTiles {
				m.recent = m.recent[len(m.recent)-recentTiles:]
			}
		}
	case DoneMsg:
		m.done = true
		m.summary = msg.Summary
		m.err = msg.Err
		m.progress = msg.Summary.Progress
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) tileLine(r atlas.Result) string {
	line := fmt.Sprintf("(%3d,%3d) %-9s range %3d  %s", r.Tile.GridX, r.Tile.GridY, r.Outcome, r.Spread, r.Elapsed.Round(time.Millisecond))
	switch r.Outcome {
	case atlas.Persisted:
		return okStyle.Render(line)
	case atlas.Failed:
		return errStyle.Render(line + "  " + fmt.Sprint(r.Err))
	}
	return dimStyle.Render(line)
}

func (m Model) View() string {
	p := m.progress
	var b strings.Builder

	b.WriteString(titleStyle.Render("mandelbrot atlas"))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(p.Fraction()))
	b.WriteString("\n\n")
	b.WriteString(m.printer.Sprintf("tiles %d / %d   workers %d   elapsed %s\n",
		p.Done, p.Total, p.Workers, time.Since(m.start).Round(time.Second)))
	b.WriteString(m.printer.Sprintf("persisted %d   skipped %d   existing %d   ", p.Persisted, p.Skipped, p.Existing))
	failed := m.printer.Sprintf("failed %d", p.Failed)
	if p.Failed > 0 {
		failed = errStyle.Render(failed)
	}
	b.WriteString(failed)
	b.WriteString("\n")

	if len(m.recent) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(m.recent, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.done && m.err != nil:
		b.WriteString(errStyle.Render("finished with errors: " + m.err.Error()))
	case m.done:
		b.WriteString(okStyle.Render("all finished"))
	case m.canceling:
		b.WriteString(dimStyle.Render("canceling, waiting for running tiles..."))
	default:
		b.WriteString(dimStyle.Render("q: cancel"))
	}
	return boxStyle.Render(b.String()) + "\n"
}
