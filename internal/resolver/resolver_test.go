package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/conneroisu/glossa/internal/errors"
)

func writeFile(t *testing.T, dir, rel, body string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	root := t.TempDir()
	reg := NewRegistry()
	reg.RegisterAll(Builtins())
	env := Environment{
		ContentRoot: filepath.Join(root, "content"),
		AssetRoot:   filepath.Join(root, "assets"),
		Embedded: fstest.MapFS{
			"shared/footer.xml": &fstest.MapFile{Data: []byte(`<footer/>`)},
		},
	}
	return New(reg, env, nil), root
}

func TestSchemeOf(t *testing.T) {
	tests := map[string]string{
		"res:site/a.xml":      "res",
		"HTTP://example.com":  "http",
		"/abs/path.xml":       "",
		"rel/path.xml":        "",
		`C:\windows\path.xml`: "",
		"x-custom+v1:thing":   "x-custom+v1",
		"1abc:thing":          "",
	}
	for ref, expected := range tests {
		t.Run(ref, func(t *testing.T) {
			assert.Equal(t, expected, SchemeOf(ref))
		})
	}
}

func TestResolveReference(t *testing.T) {
	tests := []struct {
		base, ref, expected string
	}{
		{"res:site/news/index.xml", "header.xml", "res:site/news/header.xml"},
		{"res:site/news/index.xml", "../shared/nav.xml", "res:site/shared/nav.xml"},
		{"res:site/news/index.xml", "/shared/nav.xml", "res:shared/nav.xml"},
		{"res:site/index.xml", "asset:img/logo.svg", "asset:img/logo.svg"},
		{"https://example.com/a/b.xml", "c.xml", "https://example.com/a/c.xml"},
		{filepath.FromSlash("/content/site/index.xml"), "part.xml", filepath.FromSlash("/content/site/part.xml")},
		{"merged:a.xml,b.xml", "c.xml", "c.xml"},
		{"res:site/index.xml", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.base+"+"+tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveReference(tt.base, tt.ref))
		})
	}
}

func TestResolveResourceScheme(t *testing.T) {
	r, root := newTestResolver(t)
	file := writeFile(t, root, "content/site/index.xml", `<page/>`)

	res, err := r.Resolve(context.Background(), "res:site/index.xml")
	require.NoError(t, err)

	assert.Equal(t, "res:site/index.xml", res.URI)
	assert.Equal(t, `<page/>`, string(res.Data))
	assert.Equal(t, []string{file}, r.Dependencies().All())
	assert.Equal(t, []string{"res:site/index.xml"}, r.Resolved())
}

func TestResolveClampsTraversal(t *testing.T) {
	r, root := newTestResolver(t)
	writeFile(t, root, "secret.xml", `<secret/>`)

	_, err := r.Resolve(context.Background(), "res:../secret.xml")
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeResolution))

	inside := writeFile(t, root, "content/secret.xml", `<inside/>`)
	res, err := r.Resolve(context.Background(), "res:../secret.xml")
	require.NoError(t, err)
	assert.Equal(t, `<inside/>`, string(res.Data))
	assert.Equal(t, []string{inside}, r.Dependencies().All())
}

func TestResolvePlainFileIsDefault(t *testing.T) {
	r, root := newTestResolver(t)
	file := writeFile(t, root, "plain.xml", `<plain/>`)

	res, err := r.Resolve(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, file, res.URI)
	assert.Equal(t, []string{file}, r.Dependencies().All())

	res, err = r.Resolve(context.Background(), "file://"+filepath.ToSlash(file))
	require.NoError(t, err)
	assert.Equal(t, `<plain/>`, string(res.Data))
	assert.Equal(t, 1, r.Dependencies().Len())
}

func TestResolveUnknownSchemeFails(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.Resolve(context.Background(), "gopher:thing.xml")
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeResolution))
	assert.Contains(t, err.Error(), "gopher")
	assert.Empty(t, r.Resolved())
}

func TestResolveMissingFile(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.Resolve(context.Background(), "res:nope.xml")
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeResolution))
	assert.Equal(t, 0, r.Dependencies().Len())
}

func TestResolveEmbedded(t *testing.T) {
	r, _ := newTestResolver(t)

	res, err := r.Resolve(context.Background(), "embed:shared/footer.xml")
	require.NoError(t, err)
	assert.Equal(t, `<footer/>`, string(res.Data))
	assert.Equal(t, 0, r.Dependencies().Len(), "embedded resources are not file dependencies")
}

func TestResolveHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/missing.xml" {
			http.NotFound(w, req)
			return
		}
		fmt.Fprint(w, `<remote/>`)
	}))
	defer srv.Close()

	r, _ := newTestResolver(t)
	res, err := r.Resolve(context.Background(), srv.URL+"/doc.xml")
	require.NoError(t, err)
	assert.Equal(t, `<remote/>`, string(res.Data))
	assert.Equal(t, 0, r.Dependencies().Len())

	_, err = r.Resolve(context.Background(), srv.URL+"/missing.xml")
	assert.Error(t, err)
}

func TestResolveMerged(t *testing.T) {
	r, root := newTestResolver(t)
	a := writeFile(t, root, "content/a.xml", `<a/>`)
	b := writeFile(t, root, "assets/b.xml", `<b/>`)

	doc, err := r.Load(context.Background(), "merged:res:a.xml,asset:b.xml")
	require.NoError(t, err)

	children := doc.Root().ChildElements()
	require.Len(t, children, 2)
	assert.Equal(t, "merged", doc.Root().Tag)
	assert.Equal(t, "a", children[0].Tag)
	assert.Equal(t, "res:a.xml", children[0].SelectAttrValue("source", ""))
	assert.Equal(t, "b", children[1].Tag)
	assert.ElementsMatch(t, []string{a, b}, r.Dependencies().All())
}

func TestInstanceOverrideTakesPrecedence(t *testing.T) {
	r, root := newTestResolver(t)
	writeFile(t, root, "content/site/index.xml", `<from-registry/>`)

	r.Register("res", HandlerFunc(func(ctx context.Context, req Request) (*Resource, error) {
		return &Resource{Data: []byte(`<from-override/>`)}, nil
	}))

	for i := 0; i < 2; i++ {
		res, err := r.Resolve(context.Background(), "res:site/index.xml")
		require.NoError(t, err)
		assert.Equal(t, `<from-override/>`, string(res.Data))
		assert.Equal(t, "res:site/index.xml", res.URI)
	}

	// A fresh resolver on the same registry is unaffected.
	other := New(r.registry, r.Environment(), nil)
	res, err := other.Resolve(context.Background(), "res:site/index.xml")
	require.NoError(t, err)
	assert.Equal(t, `<from-registry/>`, string(res.Data))
}

func TestRegistryFactoryRunsOncePerResolver(t *testing.T) {
	calls := 0
	reg := NewRegistry()
	reg.Register("count", func(Environment) (Handler, error) {
		calls++
		return HandlerFunc(func(ctx context.Context, req Request) (*Resource, error) {
			return &Resource{Data: []byte(`<x/>`)}, nil
		}), nil
	})

	r := New(reg, Environment{}, nil)
	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), "count:a")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"count"}, reg.Schemes())
}

func TestFactoryFailureIsResolutionError(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterAll(Builtins())
	r := New(reg, Environment{}, nil)

	_, err := r.Resolve(context.Background(), "embed:x.xml")
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeResolution))
	assert.Contains(t, err.Error(), "embedded filesystem")
}

func TestDefaultRegistryHasBuiltins(t *testing.T) {
	assert.Equal(t, []string{"asset", "embed", "merged", "res"}, Default().Schemes())
}

func TestLocalPath(t *testing.T) {
	env := Environment{ContentRoot: "/srv/content", AssetRoot: "/srv/assets"}

	tests := []struct {
		uri  string
		want string
		ok   bool
	}{
		{"/srv/content/a.xml", "/srv/content/a.xml", true},
		{"file:///tmp/a.xml", "/tmp/a.xml", true},
		{"res:site/a.xml", "/srv/content/site/a.xml", true},
		{"res:../../etc/passwd", "/srv/content/etc/passwd", true},
		{"asset:img/logo.svg", "/srv/assets/img/logo.svg", true},
		{"embed:shared/footer.xml", "", false},
		{"https://example.com/a.xml", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, ok := LocalPath(env, tt.uri)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, filepath.FromSlash(tt.want), got)
			}
		})
	}
}
