//go:build property

package dictionary

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// sourcesFrom builds one source per locale in chain; ids[i] lists the
// phrase numbers defined by chain[i].
func sourcesFrom(chain []string, ids [][]int) []*Source {
	sources := make([]*Source, 0, len(chain))
	for i, locale := range chain {
		src := &Source{Locale: locale, Location: locale + ".xml"}
		if i < len(ids) {
			for _, n := range ids[i] {
				id := fmt.Sprintf("P%d", n)
				src.Entries = append(src.Entries, Entry{ID: id, Text: locale + ":" + id})
			}
		}
		sources = append(sources, src)
	}
	return sources
}

// TestMergeProperties validates the fallback priority invariants.
func TestMergeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9753)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	chain := []string{"es-LA", "es", "en"}
	idsGen := gen.SliceOfN(3, gen.SliceOf(gen.IntRange(0, 8)))

	properties.Property("each phrase comes from the first source defining it", prop.ForAll(
		func(ids [][]int) bool {
			f := Merge("site", chain[0], chain, sourcesFrom(chain, ids))
			for _, p := range f.Phrases() {
				for i, locale := range chain {
					defined := false
					for _, n := range ids[i] {
						if fmt.Sprintf("P%d", n) == p.ID {
							defined = true
						}
					}
					if defined {
						if p.Locale != locale || p.Text != locale+":"+p.ID {
							return false
						}
						break
					}
				}
			}
			return true
		},
		idsGen,
	))

	properties.Property("the result is the union of all phrase ids", prop.ForAll(
		func(ids [][]int) bool {
			f := Merge("site", chain[0], chain, sourcesFrom(chain, ids))
			union := make(map[string]bool)
			for _, list := range ids {
				for _, n := range list {
					union[fmt.Sprintf("P%d", n)] = true
				}
			}
			if f.Len() != len(union) {
				return false
			}
			for id := range union {
				if _, ok := f.Lookup(id); !ok {
					return false
				}
			}
			return true
		},
		idsGen,
	))

	properties.TestingRun(t)
}
