package testutil

import (
	"os"
	"testing"
)

// RequireEngine skips the test if the SERAC_ENGINE_TEST environment variable
// is not set. This ensures that tests driving the real filter engine (admin
// rights, machine-wide state) are only run in the proper environment.
func RequireEngine(t *testing.T) {
	t.Helper()
	if os.Getenv("SERAC_ENGINE_TEST") == "" {
		t.Skip("Skipping test: requires SERAC_ENGINE_TEST environment")
	}
}
