package document

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/conneroisu/glossa/internal/errors"
)

func touch(t *testing.T, path string, mt time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("<x/>"), 0o644))
	require.NoError(t, os.Chtimes(path, mt, mt))
}

func TestParse(t *testing.T) {
	doc, err := Parse("page.xml", []byte(`<page><title>Hi</title></page>`), []string{"/a", "/b"})
	require.NoError(t, err)

	assert.Equal(t, "page", doc.Root().Tag)
	assert.Equal(t, []string{"/a", "/b"}, doc.Dependencies())

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(out), "<title>Hi</title>")
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse("bad.xml", []byte(`<page><open></page>`), nil)
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeIO))
	assert.Contains(t, err.Error(), "bad.xml")

	_, err = Parse("empty.xml", []byte(``), nil)
	assert.Error(t, err)
}

func TestLastModifiedIsLazyAndStable(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.xml")
	b := filepath.Join(dir, "b.xml")
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	touch(t, a, base)
	touch(t, b, base.Add(10*time.Minute))

	doc, err := Parse("page.xml", []byte(`<page/>`), []string{a, b})
	require.NoError(t, err)

	// Not computed until requested: touching before the first call is seen.
	touch(t, a, base.Add(20*time.Minute))
	first := doc.LastModified()
	assert.True(t, first.Equal(base.Add(20*time.Minute)))

	// Stable afterwards.
	touch(t, b, base.Add(30*time.Minute))
	assert.True(t, doc.LastModified().Equal(first))
}

func TestLatestModTimeMissingFile(t *testing.T) {
	before := time.Now()
	latest := LatestModTime([]string{filepath.Join(t.TempDir(), "gone.xml")})
	assert.False(t, latest.Before(before))
	assert.True(t, LatestModTime(nil).IsZero())
}

func TestCopyIsIndependent(t *testing.T) {
	doc, err := Parse("page.xml", []byte(`<page><a/></page>`), nil)
	require.NoError(t, err)

	tree := doc.Copy()
	tree.Root().CreateElement("b")

	assert.Len(t, doc.Root().ChildElements(), 1)
	assert.Len(t, tree.Root().ChildElements(), 2)
}
