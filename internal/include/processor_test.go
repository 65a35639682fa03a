package include

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/glossa/internal/document"
	cerrors "github.com/conneroisu/glossa/internal/errors"
	"github.com/conneroisu/glossa/internal/resolver"
)

const xiNS = `xmlns:xi="http://www.w3.org/2001/XInclude"`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func newResolver(dir string) *resolver.Resolver {
	return resolver.New(nil, resolver.Environment{ContentRoot: dir}, nil)
}

func process(t *testing.T, dir, name string, opts Options) (*document.Document, *Report, *resolver.Resolver) {
	t.Helper()
	r := newResolver(dir)
	out, report, err := NewProcessor(opts, nil).Assemble(context.Background(), r, filepath.Join(dir, name))
	require.NoError(t, err)
	return out, report, r
}

func TestExternalInclude(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml":          `<page ` + xiNS + `><xi:include href="shared/footer.xml"/></page>`,
		"shared/footer.xml": `<footer>Bye</footer>`,
	})

	out, report, _ := process(t, dir, "page.xml", Options{})

	footer := out.Root().FindElement("footer")
	require.NotNil(t, footer)
	assert.Equal(t, "Bye", footer.Text())
	assert.Nil(t, out.Root().FindElement("//xi:include"))
	assert.Equal(t, 1, report.Includes)
	assert.Empty(t, report.Failures)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "page.xml"),
		filepath.Join(dir, "shared", "footer.xml"),
	}, out.Dependencies())
}

func TestSelectorInclude(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml":  `<page ` + xiNS + `><xi:include href="parts.xml" xpath="/parts/part[@id='b']"/></page>`,
		"parts.xml": `<parts><part id="a">A</part><part id="b">B</part></parts>`,
	})

	out, _, _ := process(t, dir, "page.xml", Options{})

	parts := out.Root().SelectElements("part")
	require.Len(t, parts, 1)
	assert.Equal(t, "B", parts[0].Text())
}

func TestRelativeToIncludingDocument(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml":      `<page ` + xiNS + `><xi:include href="sub/outer.xml"/></page>`,
		"sub/outer.xml": `<outer ` + xiNS + `><xi:include href="inner.xml"/></outer>`,
		"sub/inner.xml": `<inner/>`,
		"inner.xml":     `<wrong/>`,
	})

	out, report, _ := process(t, dir, "page.xml", Options{})

	assert.NotNil(t, out.Root().FindElement("outer/inner"))
	assert.Nil(t, out.Root().FindElement("//wrong"))
	assert.Equal(t, 2, report.Includes)
	assert.Contains(t, out.Dependencies(), filepath.Join(dir, "sub", "inner.xml"))
}

func TestIntraDocumentInclude(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml": `<page ` + xiNS + `><defs><p id="x">Hello</p></defs>` +
			`<body><xi:include xpath="//p[@id='x']"/></body></page>`,
	})

	out, report, _ := process(t, dir, "page.xml", Options{})

	p := out.Root().FindElement("body/p")
	require.NotNil(t, p)
	assert.Equal(t, "Hello", p.Text())
	assert.Empty(t, report.Failures)
}

func TestSelfIncludeFails(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml": `<page ` + xiNS + `><body><xi:include xpath="//body"/></body></page>`,
	})

	out, report, _ := process(t, dir, "page.xml", Options{DeveloperMode: true})

	require.Len(t, report.Failures, 1)
	assert.True(t, hasCode(report.Failures[0].Err, cerrors.ErrCodeSelfInclude))
	diag := out.Root().FindElement("body/xi:error")
	require.NotNil(t, diag)
	assert.Equal(t, report.Failures[0].ID, diag.SelectAttrValue("ref", ""))
}

func TestCycleReportsOnceAtOutermostInclude(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml": `<page ` + xiNS + `><xi:include href="a.xml"/><keep/></page>`,
		"a.xml":    `<a ` + xiNS + `><xi:include href="b.xml"/></a>`,
		"b.xml":    `<b ` + xiNS + `><xi:include href="a.xml"/></b>`,
	})

	out, report, _ := process(t, dir, "page.xml", Options{})

	require.Len(t, report.Failures, 1)
	assert.Equal(t, filepath.Join(dir, "a.xml"), report.Failures[0].ID)
	assert.True(t, cerrors.IsType(report.Failures[0].Err, cerrors.ErrorTypeCycle))
	assert.Nil(t, out.Root().FindElement("//a"))
	assert.Nil(t, out.Root().FindElement("//xi:include"))
	assert.NotNil(t, out.Root().FindElement("keep"))
}

func chain(n int) map[string]string {
	files := map[string]string{
		"page.xml": `<page ` + xiNS + `><xi:include href="f1.xml"/></page>`,
	}
	for i := 1; i < n; i++ {
		files[fmt.Sprintf("f%d.xml", i)] = fmt.Sprintf(`<level n="%d" %s><xi:include href="f%d.xml"/></level>`, i, xiNS, i+1)
	}
	files[fmt.Sprintf("f%d.xml", n)] = `<leaf/>`
	return files
}

func TestDepthBound(t *testing.T) {
	t.Run("at the limit", func(t *testing.T) {
		dir := writeFiles(t, chain(DefaultMaxDepth))
		out, report, _ := process(t, dir, "page.xml", Options{})
		assert.Empty(t, report.Failures)
		assert.NotNil(t, out.Root().FindElement("//leaf"))
	})

	t.Run("beyond the limit", func(t *testing.T) {
		dir := writeFiles(t, chain(DefaultMaxDepth+1))
		out, report, _ := process(t, dir, "page.xml", Options{})
		require.Len(t, report.Failures, 1)
		assert.True(t, cerrors.IsType(report.Failures[0].Err, cerrors.ErrorTypeDepth))
		assert.Nil(t, out.Root().FindElement("//leaf"))
	})
}

func TestFailureDoesNotStopSiblings(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml": `<page ` + xiNS + `><xi:include href="gone.xml"/><xi:include href="ok.xml"/></page>`,
		"ok.xml":   `<ok/>`,
	})

	out, report, _ := process(t, dir, "page.xml", Options{})

	require.Len(t, report.Failures, 1)
	assert.True(t, cerrors.IsType(report.Failures[0].Err, cerrors.ErrorTypeResolution))
	assert.NotNil(t, out.Root().FindElement("ok"))
	assert.Len(t, out.Root().ChildElements(), 1)
}

func TestUnresolvedTargetsAtEveryLevel(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml":  `<page ` + xiNS + `><xi:include href="gone.xml"/><xi:include href="outer.xml"/><xi:include href="gone.xml"/></page>`,
		"outer.xml": `<outer ` + xiNS + `><xi:include href="parts/later.xml"/></outer>`,
	})

	_, report, _ := process(t, dir, "page.xml", Options{})

	assert.Len(t, report.Failures, 3)
	assert.Equal(t, []string{
		filepath.Join(dir, "gone.xml"),
		filepath.Join(dir, "parts", "later.xml"),
	}, report.Unresolved)
}

func TestMissingTargetLeavesPlaceholder(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml":  `<page ` + xiNS + `><xi:include href="parts.xml" xpath="//nothing"/></page>`,
		"parts.xml": `<parts/>`,
	})

	out, report, _ := process(t, dir, "page.xml", Options{})

	assert.Empty(t, report.Failures)
	require.Len(t, report.Missing, 1)
	assert.NotNil(t, out.Root().FindElement("xi:missing"))
}

func TestTextInclude(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml": `<page ` + xiNS + `><p><xi:include href="note.txt" parse="text" encoding="iso-8859-1"/></p>` +
			`<q><xi:include href="parts.xml" xpath="//b" parse="text"/></q></page>`,
		"note.txt":  "caf\xe9",
		"parts.xml": `<a>x<b>one <i>two</i></b></a>`,
	})

	out, report, _ := process(t, dir, "page.xml", Options{})

	assert.Empty(t, report.Failures)
	assert.Equal(t, "café", out.Root().FindElement("p").Text())
	assert.Equal(t, "one two", out.Root().FindElement("q").Text())
}

func TestHTMLInclude(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml":  `<page ` + xiNS + `><xi:include href="frag.html" parse="html"/></page>`,
		"frag.html": `<html><body><p class="lead">Hi<br>there</p></body></html>`,
	})

	out, report, _ := process(t, dir, "page.xml", Options{})

	assert.Empty(t, report.Failures)
	p := out.Root().FindElement("p")
	require.NotNil(t, p)
	assert.Equal(t, "lead", p.SelectAttrValue("class", ""))
	assert.NotNil(t, p.FindElement("br"))
}

func TestUnknownParseMode(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml": `<page ` + xiNS + `><xi:include href="x.xml" parse="binary"/></page>`,
		"x.xml":    `<x/>`,
	})

	_, report, _ := process(t, dir, "page.xml", Options{})

	require.Len(t, report.Failures, 1)
	assert.True(t, hasCode(report.Failures[0].Err, cerrors.ErrCodeParseFailed))
}

func TestLiteralRegionUntouched(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml": `<page ` + xiNS + `><xi:literal><xi:include href="nope.xml"/></xi:literal></page>`,
	})

	out, report, _ := process(t, dir, "page.xml", Options{})

	assert.Empty(t, report.Failures)
	assert.NotNil(t, out.Root().FindElement("xi:literal/xi:include"))
}

func TestTargetFetchedOnce(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml":   `<page ` + xiNS + `><xi:include href="footer.xml"/><xi:include href="footer.xml"/></page>`,
		"footer.xml": `<footer/>`,
	})

	out, _, r := process(t, dir, "page.xml", Options{})

	assert.Len(t, out.Root().SelectElements("footer"), 2)
	fetches := 0
	for _, uri := range r.Resolved() {
		if strings.HasSuffix(uri, "footer.xml") {
			fetches++
		}
	}
	assert.Equal(t, 1, fetches)
}

func TestProcessIsIdempotent(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml": `<page ` + xiNS + `><xi:include href="footer.xml"/><xi:include href="gone.xml"/>` +
			`<xi:literal><xi:include href="x.xml"/></xi:literal></page>`,
		"footer.xml": `<footer/>`,
	})

	once, _, _ := process(t, dir, "page.xml", Options{DeveloperMode: true})
	twice, report, err := NewProcessor(Options{DeveloperMode: true}, nil).
		Process(context.Background(), newResolver(dir), once)
	require.NoError(t, err)

	a, err := once.Bytes()
	require.NoError(t, err)
	b, err := twice.Bytes()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Zero(t, report.Includes)
}

func TestCanceledContext(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"page.xml":   `<page ` + xiNS + `><xi:include href="footer.xml"/></page>`,
		"footer.xml": `<footer/>`,
	})
	r := newResolver(dir)
	doc, err := r.Load(context.Background(), filepath.Join(dir, "page.xml"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = NewProcessor(Options{}, nil).Process(ctx, r, doc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "a.xml", Identifier("a.xml", ""))
	assert.Equal(t, "//p", Identifier("", "//p"))
	assert.Equal(t, "a.xml[//p]", Identifier("a.xml", "//p"))
}

func hasCode(err error, code string) bool {
	ce, ok := err.(*cerrors.ContentError)
	return ok && ce.Code == code
}
