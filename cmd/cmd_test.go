package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/glossa/internal/config"
	cerrors "github.com/conneroisu/glossa/internal/errors"
	"github.com/conneroisu/glossa/internal/watcher"
)

const testConfig = `content:
  root: content
  output: out
default_locale: en
locales:
  - name: es
  - name: en
groups:
  - name: site
    path: site
    locales: [es, en]
    dictionary: i18n/site.{locale}.xml
  - name: blog
    path: blog
    locales: [es, en]
    dictionary: i18n/blog.{locale}.xml
  - name: plain
    path: plain
log:
  level: error
`

const (
	l10nNS = `xmlns:l10n="urn:glossa:l10n"`
	xiNS   = `xmlns:xi="http://www.w3.org/2001/XInclude"`
)

// setupProject writes a configuration file and a small content tree and
// returns the project directory.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		".glossa.yml":                    testConfig,
		"content/site/page.xml":          `<page ` + l10nNS + ` ` + xiNS + `><h1><l10n:phrase id="P1"/></h1><xi:include href="shared/footer.xml"/></page>`,
		"content/site/shared/footer.xml": `<footer ` + l10nNS + `><l10n:phrase id="P3"/></footer>`,
		"content/blog/post.xml":          `<post ` + l10nNS + `><l10n:phrase id="B1"/></post>`,
		"content/i18n/site.es.xml":       `<dictionary><phrase id="P1">uno</phrase><phrase id="P2">dos</phrase></dictionary>`,
		"content/i18n/site.en.xml":       `<dictionary><phrase id="P1">one</phrase><phrase id="P2">two</phrase><phrase id="P3">three</phrase></dictionary>`,
		"content/i18n/blog.es.xml":       `<dictionary><phrase id="B1">hola</phrase></dictionary>`,
	}
	for rel, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func testEnvironment(t *testing.T, dir string) *environment {
	t.Helper()
	cfg, err := config.LoadFile(filepath.Join(dir, ".glossa.yml"))
	require.NoError(t, err)
	env, err := newEnvironmentFor(cfg)
	require.NoError(t, err)
	return env
}

func TestLocalizeCommandTable(t *testing.T) {
	dir := setupProject(t)
	env := testEnvironment(t, dir)

	var out bytes.Buffer
	flags := &StandardFlags{Locales: []string{"es"}, OutputFormat: "table"}
	require.NoError(t, localize(context.Background(), &out, env.orchestrator, []string{"site/page.xml"}, flags))

	assert.Contains(t, out.String(), "RESOURCE")
	assert.Contains(t, out.String(), "site/page.xml")
	assert.Contains(t, out.String(), "generated")
	assert.FileExists(t, filepath.Join(dir, "out", "site", "page.es.xml"))
}

func TestLocalizeCommandAllJSON(t *testing.T) {
	dir := setupProject(t)
	env := testEnvironment(t, dir)
	flags := &StandardFlags{All: true, OutputFormat: "json"}

	run := func() []resultView {
		var out bytes.Buffer
		require.NoError(t, localize(context.Background(), &out, env.orchestrator, []string{"site/page.xml"}, flags))
		var views []resultView
		require.NoError(t, json.Unmarshal(out.Bytes(), &views))
		return views
	}

	first := run()
	require.Len(t, first, 2)
	for _, v := range first {
		assert.Equal(t, "generated", v.Status)
		assert.Len(t, v.Fingerprint, 64)
	}

	second := run()
	require.Len(t, second, 2)
	for i, v := range second {
		assert.Equal(t, "current", v.Status)
		assert.Equal(t, first[i].Fingerprint, v.Fingerprint)
	}
}

func TestLocalizeCommandCollectsFailures(t *testing.T) {
	dir := setupProject(t)
	env := testEnvironment(t, dir)

	var out bytes.Buffer
	flags := &StandardFlags{All: true, OutputFormat: "yaml"}
	err := localize(context.Background(), &out, env.orchestrator, []string{"blog/post.xml"}, flags)

	var batch *cerrors.BatchError
	require.ErrorAs(t, err, &batch)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeMissingDictionary))

	var views []resultView
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "es", views[0].Locale)
}

func TestLocalizeCommandQuiet(t *testing.T) {
	dir := setupProject(t)
	env := testEnvironment(t, dir)

	var out bytes.Buffer
	flags := &StandardFlags{Quiet: true, Diagnose: true}
	require.NoError(t, localize(context.Background(), &out, env.orchestrator, []string{"site/page.xml"}, flags))
	assert.Empty(t, out.String())
	assert.FileExists(t, filepath.Join(dir, "out", "site", "page.en.diag.xml"))
}

func TestResolveCommand(t *testing.T) {
	dir := setupProject(t)
	env := testEnvironment(t, dir)

	var out, errOut bytes.Buffer
	require.NoError(t, resolve(context.Background(), &out, &errOut, env.orchestrator, "site/page.xml", false))
	assert.Contains(t, out.String(), "<footer")
	assert.Contains(t, out.String(), `l10n:phrase id="P3"`)
	assert.Empty(t, errOut.String())

	out.Reset()
	require.NoError(t, resolve(context.Background(), &out, &errOut, env.orchestrator, "site/page.xml", true))
	assert.Contains(t, out.String(), filepath.Join(dir, "content", "site", "page.xml"))
	assert.Contains(t, out.String(), filepath.Join(dir, "content", "site", "shared", "footer.xml"))
}

func TestResolveCommandReportsFailedIncludes(t *testing.T) {
	dir := setupProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "content", "site", "broken.xml"),
		[]byte(`<page `+xiNS+`><xi:include href="missing.xml"/></page>`), 0o644))
	env := testEnvironment(t, dir)

	var out, errOut bytes.Buffer
	require.NoError(t, resolve(context.Background(), &out, &errOut, env.orchestrator, "site/broken.xml", false))
	assert.Contains(t, errOut.String(), "failed")
	assert.Contains(t, out.String(), "<page")
}

func TestDictCommand(t *testing.T) {
	dir := setupProject(t)
	env := testEnvironment(t, dir)

	var out bytes.Buffer
	flags := &StandardFlags{Locales: []string{"es"}, OutputFormat: "yaml"}
	require.NoError(t, dict(context.Background(), &out, env.orchestrator, "site", flags, true))

	var views []dictView
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "es", views[0].Locale)
	assert.Equal(t, []string{"es", "en"}, views[0].Chain)
	assert.Equal(t, 3, views[0].Phrases)
	assert.Equal(t, 1, views[0].Fallback)
	assert.Equal(t, []string{"P3"}, views[0].Untranslated)
}

func TestDictCommandTable(t *testing.T) {
	dir := setupProject(t)
	env := testEnvironment(t, dir)

	var out bytes.Buffer
	require.NoError(t, dict(context.Background(), &out, env.orchestrator, "site", &StandardFlags{}, true))
	assert.Contains(t, out.String(), "LOCALE")
	assert.Contains(t, out.String(), "es>en")
	assert.Contains(t, out.String(), "es untranslated:")
	assert.Contains(t, out.String(), "  P3")
}

func TestDictCommandErrors(t *testing.T) {
	dir := setupProject(t)
	env := testEnvironment(t, dir)
	var out bytes.Buffer

	err := dict(context.Background(), &out, env.orchestrator, "nope", &StandardFlags{}, false)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeConfig))

	err = dict(context.Background(), &out, env.orchestrator, "plain", &StandardFlags{}, false)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeConfig))
}

func TestShowConfig(t *testing.T) {
	dir := setupProject(t)
	cfg, err := config.LoadFile(filepath.Join(dir, ".glossa.yml"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, showConfig(&out, cfg, "yaml"))
	var shown config.Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &shown))
	assert.Equal(t, filepath.Join(dir, "content"), shown.Content.Root)
	assert.Len(t, shown.Groups, 3)

	out.Reset()
	require.NoError(t, showConfig(&out, cfg, "json"))
	assert.True(t, json.Valid(out.Bytes()))

	assert.Error(t, showConfig(&out, cfg, "xml"))
}

func TestValidateConfig(t *testing.T) {
	dir := setupProject(t)

	var out bytes.Buffer
	require.NoError(t, validateConfig(&out, filepath.Join(dir, ".glossa.yml")))
	assert.Contains(t, out.String(), "is valid")
	assert.Contains(t, out.String(), "site, blog, plain")

	broken := filepath.Join(dir, "broken.yml")
	require.NoError(t, os.WriteFile(broken, []byte(strings.ReplaceAll(testConfig, "site.{locale}.xml", "site.xml")), 0o644))
	assert.Error(t, validateConfig(&out, broken))
}

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name    string
		flags   StandardFlags
		wantErr bool
	}{
		{"defaults", StandardFlags{OutputFormat: "table"}, false},
		{"json", StandardFlags{OutputFormat: "json"}, false},
		{"unknown format", StandardFlags{OutputFormat: "csv"}, true},
		{"quiet and verbose", StandardFlags{Quiet: true, Verbose: true}, true},
		{"all and locale", StandardFlags{All: true, Locales: []string{"es"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.flags.ValidateFlags()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLocalesValue(t *testing.T) {
	var locales []string
	v := &localesValue{locales: &locales}

	require.NoError(t, v.Set("es-la"))
	require.NoError(t, v.Set("fr, en"))
	assert.Equal(t, []string{"es-LA", "fr", "en"}, locales)
	assert.Equal(t, "es-LA,fr,en", v.String())
	assert.Equal(t, "locales", v.Type())

	assert.Error(t, v.Set("not a locale!"))
}

func TestDictionaryHandlerInvalidatesGroup(t *testing.T) {
	dir := setupProject(t)
	env := testEnvironment(t, dir)
	ctx := context.Background()

	dictionaries := env.orchestrator.Dictionaries()
	before, err := dictionaries.Collection(ctx, "site")
	require.NoError(t, err)
	blog, err := dictionaries.Collection(ctx, "blog")
	require.NoError(t, err)

	handler := dictionaryHandler(ctx, env)
	require.NoError(t, handler([]watcher.ChangeEvent{{
		Path: filepath.Join(dir, "content", "i18n", "site.es.xml"),
		Type: watcher.EventTypeModified,
	}}))

	after, err := dictionaries.Collection(ctx, "site")
	require.NoError(t, err)
	assert.NotSame(t, before, after)

	sameBlog, err := dictionaries.Collection(ctx, "blog")
	require.NoError(t, err)
	assert.Same(t, blog, sameBlog)
}

func TestRefreshHandlerPrintsRegeneratedOnly(t *testing.T) {
	dir := setupProject(t)
	env := testEnvironment(t, dir)
	ctx := context.Background()

	saved := watchFlags
	watchFlags = &StandardFlags{OutputFormat: "json"}
	t.Cleanup(func() { watchFlags = saved })

	flags := &StandardFlags{All: true, OutputFormat: "json"}
	require.NoError(t, localize(ctx, &bytes.Buffer{}, env.orchestrator, []string{"site/page.xml"}, flags))

	var out bytes.Buffer
	handler := refreshHandler(ctx, &out, env)
	require.NoError(t, handler(nil))
	assert.Empty(t, out.String())

	footer := filepath.Join(dir, "content", "site", "shared", "footer.xml")
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(footer, future, future))

	require.NoError(t, handler(nil))
	var views []resultView
	require.NoError(t, json.Unmarshal(out.Bytes(), &views))
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, "generated", v.Status)
		assert.Equal(t, "source changed", v.Reason)
	}
}

func TestNewContentWatcher(t *testing.T) {
	dir := setupProject(t)
	env := testEnvironment(t, dir)

	fw, err := newContentWatcher(context.Background(), &bytes.Buffer{}, env, nil)
	require.NoError(t, err)
	defer fw.Stop()

	assert.Contains(t, fw.WatchList(), filepath.Join(dir, "content", "site", "shared"))
}

func TestPrintVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printVersion(&out, "text", false, false))
	assert.True(t, strings.HasPrefix(out.String(), "glossa "))
	assert.Contains(t, out.String(), "Platform:")

	out.Reset()
	require.NoError(t, printVersion(&out, "json", false, false))
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Contains(t, info, "version")

	out.Reset()
	require.NoError(t, printVersion(&out, "text", true, false))
	assert.NotEmpty(t, strings.TrimSpace(out.String()))

	assert.Error(t, printVersion(&out, "xml", false, false))
}

func TestRootCommandLocalize(t *testing.T) {
	dir := setupProject(t)
	t.Cleanup(func() {
		cfgFile = ""
		localizeFlags.Locales = nil
		localizeFlags.OutputFormat = "table"
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", filepath.Join(dir, ".glossa.yml"), "localize", "site/page.xml", "-L", "es", "-o", "json"})
	require.NoError(t, rootCmd.Execute())

	var views []resultView
	require.NoError(t, json.Unmarshal(out.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, filepath.Join(dir, "out", "site", "page.es.xml"), views[0].Output)
}
