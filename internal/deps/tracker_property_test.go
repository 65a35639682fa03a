//go:build property

package deps

import (
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestTrackerProperties validates the de-duplication invariants.
func TestTrackerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	root := t.TempDir()

	properties.Property("every tracked path appears exactly once", prop.ForAll(
		func(names []string) bool {
			tr := New()
			for _, n := range names {
				tr.Add(filepath.Join(root, n))
				// Shared includes are referenced repeatedly.
				tr.Add(filepath.Join(root, n))
			}

			seen := make(map[string]bool)
			for _, p := range tr.All() {
				if seen[p] {
					return false
				}
				seen[p] = true
			}
			for _, n := range names {
				if !seen[filepath.Join(root, n)] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("merge is idempotent", prop.ForAll(
		func(names []string) bool {
			a := New()
			for _, n := range names {
				a.Add(filepath.Join(root, n))
			}
			before := a.Len()
			a.Merge(a)
			return a.Len() == before
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
