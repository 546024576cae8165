package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/serac/internal/logging"
	"grimm.is/serac/internal/rulefile"
)

// RunApply loads a rule file and replaces its managed objects in the
// engine. With dynamic set, the session stays open until interrupted and
// the engine erases the objects on exit.
func RunApply(path string, dynamic bool, dnsServer string) error {
	doc, err := rulefile.Load(path)
	if err != nil {
		return err
	}
	rendered, err := doc.Render(rulefile.NewResolver(dnsServer))
	if err != nil {
		return err
	}

	s, err := openSession(dynamic)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := rulefile.Apply(s, rendered)
	if err != nil {
		return err
	}

	logging.Audit("apply", path, map[string]any{
		"provider":          rendered.Provider.Name,
		"filters_added":     result.FiltersAdded,
		"filters_removed":   result.FiltersRemoved,
		"sublayers_added":   result.SubLayersAdded,
		"sublayers_removed": result.SubLayersRemoved,
		"dynamic":           dynamic,
	})
	fmt.Printf("Applied %s: %d filters and %d sublayers installed (%d filters, %d sublayers replaced)\n",
		path, result.FiltersAdded, result.SubLayersAdded, result.FiltersRemoved, result.SubLayersRemoved)

	if dynamic {
		fmt.Println("Dynamic session held open; interrupt to remove the objects and exit.")
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		fmt.Println("Interrupted, closing session.")
	}
	return nil
}
