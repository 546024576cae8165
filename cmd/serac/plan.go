package main

import (
	"fmt"

	"grimm.is/serac/internal/rulefile"
)

// RunPlan diffs a rule file's rendered objects against the running engine
// state. It returns an error when they differ, so drift exits non-zero.
func RunPlan(path string, dnsServer string) error {
	doc, err := rulefile.Load(path)
	if err != nil {
		return err
	}
	rendered, err := doc.Render(rulefile.NewResolver(dnsServer))
	if err != nil {
		return err
	}

	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := rulefile.Plan(s, rendered)
	if err != nil {
		return err
	}
	if result.InSync {
		fmt.Println("No changes detected.")
		return nil
	}

	fmt.Println("Engine state differs from " + path + ":")
	fmt.Print(result.Diff)
	return fmt.Errorf("engine state differs")
}
