// Package tui is the terminal UI behind the CLI's monitor and add
// commands: a live filter table over an open engine session, and the
// interactive form that collects a single filter.
package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"grimm.is/serac"
	"grimm.is/serac/internal/clock"
)

// Model is the live filter monitor. Each refresh is one enumeration pass
// over the session; the table shows the engine's own ordering, which is
// match precedence within a layer.
type Model struct {
	Session   *serac.Session
	Table     table.Model
	Filters   []serac.FilterInfo
	Layer     serac.Layer // zero shows every layer
	Clock     clock.Clock
	Refreshed time.Time
	Err       error
	Width     int
	Height    int
}

// loadError carries a failed enumeration into Update.
type loadError struct {
	Err error
}

// NewModel builds the monitor over an open session.
func NewModel(session *serac.Session) Model {
	columns := []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Name", Width: 24},
		{Title: "Layer", Width: 24},
		{Title: "Action", Width: 12},
		{Title: "Weight", Width: 10},
		{Title: "Conds", Width: 5},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	st := table.DefaultStyles()
	st.Header = st.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorShadow).
		BorderBottom(true).
		Bold(true)
	st.Selected = st.Selected.
		Foreground(ColorGlacier).
		Background(ColorShadow).
		Bold(false)
	t.SetStyles(st)

	return Model{
		Session: session,
		Table:   t,
		Clock:   &clock.RealClock{},
	}
}

// Init fetches the first snapshot.
func (m Model) Init() tea.Cmd {
	return m.fetch()
}

// fetch enumerates the session's filters at the current layer narrowing.
func (m Model) fetch() tea.Cmd {
	session, layer := m.Session, m.Layer
	return func() tea.Msg {
		it := session.Filters(serac.FilterQuery{Layer: layer})
		defer it.Close()

		var filters []serac.FilterInfo
		for it.Next() {
			filters = append(filters, *it.Item())
		}
		if err := it.Err(); err != nil {
			return loadError{Err: err}
		}
		return filters
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case []serac.FilterInfo:
		m.Filters = msg
		m.Err = nil
		m.Refreshed = m.Clock.Now()
		rows := make([]table.Row, len(msg))
		for i, f := range msg {
			rows[i] = table.Row{
				strconv.FormatUint(f.ID, 10),
				f.Name,
				f.Layer.String(),
				f.Action.String(),
				strconv.FormatUint(f.EffectiveWeight, 10),
				strconv.Itoa(len(f.Conditions)),
			}
		}
		m.Table.SetRows(rows)

	case loadError:
		m.Err = msg.Err

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetch()
		case "l":
			m.Layer = cycleLayer(m.Layer, false)
			return m, m.fetch()
		case "L":
			m.Layer = cycleLayer(m.Layer, true)
			return m, m.fetch()
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetHeight(msg.Height - 7) // Reserve space for header/footer
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

// View renders the monitor.
func (m Model) View() string {
	scope := "all layers"
	if m.Layer != 0 {
		scope = m.Layer.String()
	}
	status := fmt.Sprintf("%d filters, %s", len(m.Filters), scope)
	if !m.Refreshed.IsZero() {
		status += ", refreshed " + m.Refreshed.Format("15:04:05")
	}

	doc := lipgloss.JoinVertical(lipgloss.Left,
		StyleHeader.Render("FILTER MONITOR (r: refresh, l/L: layer, q: quit)"),
		StyleCard.Render(m.Table.View()),
		StyleSubtitle.Render(status),
	)

	if m.Err != nil {
		doc = lipgloss.JoinVertical(lipgloss.Left,
			doc,
			StyleStatusBad.Render("error: "+m.Err.Error()),
		)
	}

	return StyleApp.Render(doc)
}

// cycleLayer steps the layer narrowing: zero (all layers), then each
// supported layer in declaration order, then back to zero.
func cycleLayer(l serac.Layer, back bool) serac.Layer {
	layers := serac.Layers()
	if l == 0 {
		if back {
			return layers[len(layers)-1]
		}
		return layers[0]
	}
	for i, x := range layers {
		if x != l {
			continue
		}
		if back {
			if i == 0 {
				return 0
			}
			return layers[i-1]
		}
		if i == len(layers)-1 {
			return 0
		}
		return layers[i+1]
	}
	return 0
}
