package main

import (
	tea "github.com/charmbracelet/bubbletea"

	"grimm.is/serac"
	"grimm.is/serac/internal/tui"
)

// RunMonitor starts the live filter table.
func RunMonitor(layerName string) error {
	var layer serac.Layer
	if layerName != "" {
		l, err := serac.ParseLayer(layerName)
		if err != nil {
			return err
		}
		layer = l
	}

	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	m := tui.NewModel(s)
	m.Layer = layer

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
