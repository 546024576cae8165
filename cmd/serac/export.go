package main

import (
	"fmt"
	"os"

	"grimm.is/serac/internal/logging"
	"grimm.is/serac/internal/rulefile"
)

// RunExport reconstructs a rule file from the provider's installed
// objects and writes it as HCL, to stdout unless an output path is given.
// Applying the written file reproduces the exported state.
func RunExport(provider, outPath string) error {
	if provider == "" {
		provider = rulefile.DefaultProvider
	}

	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()

	doc, err := rulefile.Export(s, provider)
	if err != nil {
		return err
	}
	data := doc.EncodeHCL()

	if outPath == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	logging.Audit("export", outPath, map[string]any{
		"provider":  provider,
		"filters":   len(doc.Filters),
		"sublayers": len(doc.SubLayers),
	})
	fmt.Printf("Exported %d filters and %d sublayers to %s\n",
		len(doc.Filters), len(doc.SubLayers), outPath)
	return nil
}
