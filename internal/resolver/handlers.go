package resolver

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	cerrors "github.com/conneroisu/glossa/internal/errors"
)

// Built-in schemes.
const (
	SchemeResource = "res"
	SchemeAsset    = "asset"
	SchemeEmbed    = "embed"
	SchemeMerged   = "merged"
)

// maxHTTPBody bounds remote documents.
const maxHTTPBody = 16 << 20

type fileHandler struct{}

func (fileHandler) Resolve(_ context.Context, req Request) (*Resource, error) {
	p := req.Path()
	if req.URL.Scheme == "file" {
		p = filepath.FromSlash(p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, cerrors.NewIOError(cerrors.ErrCodeFileNotFound, "cannot read file", err).WithLocation(abs)
	}
	return &Resource{URI: abs, Data: data, Dependencies: []string{abs}}, nil
}

type httpHandler struct {
	client *http.Client
}

func (h httpHandler) Resolve(ctx context.Context, req Request) (*Resource, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URI, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBody))
	if err != nil {
		return nil, err
	}
	// Remote content is not a local file and is never a dependency.
	return &Resource{URI: req.URI, Data: data}, nil
}

// rootHandler serves scheme:relative/path from a directory. Paths are
// cleaned as if rooted, so ".." never climbs out of the directory.
type rootHandler struct {
	root string
}

func newRootHandler(root func(Environment) string) Factory {
	return func(env Environment) (Handler, error) {
		dir := root(env)
		if dir == "" {
			return nil, fmt.Errorf("no root directory configured")
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		return rootHandler{root: abs}, nil
	}
}

func (h rootHandler) Resolve(_ context.Context, req Request) (*Resource, error) {
	file, err := h.file(req.Path())
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, cerrors.NewIOError(cerrors.ErrCodeFileNotFound, "cannot read file", err).WithLocation(file)
	}
	return &Resource{
		URI:          req.URL.Scheme + ":" + cleanRel(req.Path()),
		Data:         data,
		Dependencies: []string{file},
	}, nil
}

func (h rootHandler) file(rel string) (string, error) {
	clean := cleanRel(rel)
	if clean == "" {
		return "", fmt.Errorf("empty path for %q", rel)
	}
	return filepath.Join(h.root, filepath.FromSlash(clean)), nil
}

func cleanRel(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

type embedHandler struct {
	fsys fs.FS
}

func newEmbedHandler(env Environment) (Handler, error) {
	if env.Embedded == nil {
		return nil, fmt.Errorf("no embedded filesystem configured")
	}
	return embedHandler{fsys: env.Embedded}, nil
}

func (h embedHandler) Resolve(_ context.Context, req Request) (*Resource, error) {
	name := cleanRel(req.Path())
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid embedded path %q", req.Path())
	}
	data, err := fs.ReadFile(h.fsys, name)
	if err != nil {
		return nil, err
	}
	// Embedded resources are compiled in and never change at runtime.
	return &Resource{URI: SchemeEmbed + ":" + name, Data: data}, nil
}

// mergedHandler concatenates the root elements of several documents under
// one <merged> element: merged:a.xml,res:site/b.xml.
type mergedHandler struct{}

func newMergedHandler(Environment) (Handler, error) {
	return mergedHandler{}, nil
}

func (mergedHandler) Resolve(ctx context.Context, req Request) (*Resource, error) {
	parts := splitMerged(req.Path())
	if len(parts) == 0 {
		return nil, fmt.Errorf("merged URI lists no sources")
	}

	out := etree.NewDocument()
	root := out.CreateElement("merged")

	var dependencies []string
	for _, part := range parts {
		doc, err := req.Resolver.Load(ctx, part)
		if err != nil {
			return nil, err
		}
		src := doc.Root().Copy()
		src.CreateAttr("source", doc.Location)
		root.AddChild(src)
		dependencies = append(dependencies, doc.Dependencies()...)
	}

	data, err := out.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return &Resource{URI: req.URI, Data: data, Dependencies: dependencies}, nil
}

func splitMerged(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
