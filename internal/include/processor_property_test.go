//go:build property

package include

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	cerrors "github.com/conneroisu/glossa/internal/errors"
)

func materialize(root string, files map[string]string) (string, error) {
	dir, err := os.MkdirTemp(root, "case")
	if err != nil {
		return "", err
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func ring(n int) map[string]string {
	files := map[string]string{
		"page.xml": `<page ` + xiNS + `><xi:include href="r0.xml"/><after/></page>`,
	}
	for i := 0; i < n; i++ {
		files[fmt.Sprintf("r%d.xml", i)] = fmt.Sprintf(`<r%d %s><xi:include href="r%d.xml"/></r%d>`, i, xiNS, (i+1)%n, i)
	}
	return files
}

// TestIncludeProperties checks termination and the nesting bound.
func TestIncludeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 40

	properties := gopter.NewProperties(parameters)
	root := t.TempDir()
	p := NewProcessor(Options{}, nil)

	properties.Property("chains resolve only within the depth bound", prop.ForAll(
		func(n int) bool {
			dir, err := materialize(root, chain(n))
			if err != nil {
				return false
			}
			out, report, err := p.Assemble(context.Background(), newResolver(dir), filepath.Join(dir, "page.xml"))
			if err != nil {
				return false
			}
			if n <= DefaultMaxDepth {
				return len(report.Failures) == 0 && out.Root().FindElement("//leaf") != nil
			}
			return len(report.Failures) == 1 && cerrors.IsType(report.Failures[0].Err, cerrors.ErrorTypeDepth)
		},
		gen.IntRange(1, DefaultMaxDepth+4),
	))

	properties.Property("cycles terminate with one error", prop.ForAll(
		func(n int) bool {
			dir, err := materialize(root, ring(n))
			if err != nil {
				return false
			}
			out, report, err := p.Assemble(context.Background(), newResolver(dir), filepath.Join(dir, "page.xml"))
			if err != nil {
				return false
			}
			return len(report.Failures) == 1 &&
				cerrors.IsType(report.Failures[0].Err, cerrors.ErrorTypeCycle) &&
				out.Root().FindElement("after") != nil &&
				out.Root().FindElement("//xi:include") == nil
		},
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}
