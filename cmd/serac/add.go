package main

import (
	"fmt"

	"grimm.is/serac/internal/logging"
	"grimm.is/serac/internal/tui"
)

// RunAdd installs a single filter. An empty draft name means no flags were
// given, so the interactive form collects the draft instead.
func RunAdd(d *tui.FilterDraft) error {
	if d.Name == "" {
		if err := tui.NewFilterForm(d).Run(); err != nil {
			return err
		}
	}

	f, err := d.Filter()
	if err != nil {
		return err
	}

	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.AddFilter(f)
	if err != nil {
		return err
	}

	logging.Audit("add", f.Name, map[string]any{
		"id":     id,
		"key":    f.Key.String(),
		"layer":  f.Layer.String(),
		"action": f.Action.String(),
	})
	fmt.Printf("Installed filter %q (id %d, key %s)\n", f.Name, id, f.Key)
	return nil
}
