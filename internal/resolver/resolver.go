package resolver

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/glossa/internal/deps"
	"github.com/conneroisu/glossa/internal/document"
	cerrors "github.com/conneroisu/glossa/internal/errors"
	"github.com/conneroisu/glossa/internal/logging"
)

// Resolver resolves URIs for one top-level resolution and records every
// file and URI it touched. It is not safe for concurrent use; create one
// per call. The Registry it reads from may be shared.
type Resolver struct {
	registry  *Registry
	env       Environment
	overrides map[string]Handler
	instances map[string]Handler
	defaults  map[string]Handler
	tracker   *deps.Tracker
	resolved  []string
	logger    logging.Logger
}

// New creates a resolver over registry. A nil registry means Default().
func New(registry *Registry, env Environment, logger logging.Logger) *Resolver {
	if registry == nil {
		registry = Default()
	}
	return &Resolver{
		registry:  registry,
		env:       env,
		overrides: make(map[string]Handler),
		instances: make(map[string]Handler),
		defaults: map[string]Handler{
			"":      fileHandler{},
			"file":  fileHandler{},
			"http":  httpHandler{client: env.httpClient()},
			"https": httpHandler{client: env.httpClient()},
		},
		tracker: deps.New(),
		logger:  logging.OrDiscard(logger).WithComponent("resolver"),
	}
}

// Register installs h for scheme on this resolver only. It takes
// precedence over the shared registry for the resolver's lifetime.
func (r *Resolver) Register(scheme string, h Handler) {
	r.overrides[strings.ToLower(scheme)] = h
}

// Environment returns the environment handlers are built from.
func (r *Resolver) Environment() Environment {
	return r.env
}

// Dependencies returns the tracker accumulating every file dependency seen
// through this resolver.
func (r *Resolver) Dependencies() *deps.Tracker {
	return r.tracker
}

// Resolved lists every URI resolved through this resolver, in order.
func (r *Resolver) Resolved() []string {
	out := make([]string, len(r.resolved))
	copy(out, r.resolved)
	return out
}

// Handler returns the handler for scheme following the lookup tiers.
func (r *Resolver) Handler(scheme string) (Handler, error) {
	h, err := r.lookup(scheme)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (r *Resolver) lookup(scheme string) (Handler, *cerrors.ContentError) {
	scheme = strings.ToLower(scheme)

	if h, ok := r.overrides[scheme]; ok {
		return h, nil
	}
	if h, ok := r.instances[scheme]; ok {
		return h, nil
	}
	if factory, ok := r.registry.Lookup(scheme); ok {
		h, err := factory(r.env)
		if err != nil {
			return nil, cerrors.NewResolutionError(cerrors.ErrCodeHandlerFactory,
				fmt.Sprintf("cannot construct handler for scheme %q", scheme), err)
		}
		r.instances[scheme] = h
		return h, nil
	}
	if h, ok := r.defaults[scheme]; ok {
		return h, nil
	}

	return nil, cerrors.NewResolutionError(cerrors.ErrCodeNoHandler,
		fmt.Sprintf("no handler registered for scheme %q", scheme), nil)
}

// Resolve fetches uri and records its dependencies.
func (r *Resolver) Resolve(ctx context.Context, uri string) (*Resource, error) {
	scheme := SchemeOf(uri)

	var u *url.URL
	if scheme == "" {
		u = &url.URL{Path: uri}
	} else {
		var err error
		if u, err = url.Parse(uri); err != nil {
			return nil, cerrors.NewResolutionError(cerrors.ErrCodeBadURI, "malformed URI", err).WithLocation(uri)
		}
	}

	h, lerr := r.lookup(scheme)
	if lerr != nil {
		return nil, lerr.WithLocation(uri)
	}

	res, err := h.Resolve(ctx, Request{URI: uri, URL: u, Resolver: r})
	if err != nil {
		if cerrors.TypeOf(err) == cerrors.ErrorTypeResolution {
			return nil, err
		}
		return nil, cerrors.NewResolutionError(cerrors.ErrCodeFetchFailed, "cannot resolve", err).WithLocation(uri)
	}
	if res.URI == "" {
		res.URI = uri
	}

	r.resolved = append(r.resolved, uri)
	r.tracker.Add(res.Dependencies...)
	r.logger.Debug(ctx, "Resolved resource", "uri", uri, "scheme", scheme, "dependencies", len(res.Dependencies))

	return res, nil
}

// Load resolves uri and parses it as an XML document.
func (r *Resolver) Load(ctx context.Context, uri string) (*document.Document, error) {
	res, err := r.Resolve(ctx, uri)
	if err != nil {
		return nil, err
	}
	return document.Parse(res.URI, res.Data, res.Dependencies)
}

// SchemeOf returns the lower-cased scheme of ref, or "" for plain paths.
func SchemeOf(ref string) string {
	return deps.Scheme(ref)
}

// ResolveReference computes the absolute location of ref relative to the
// document at base. References that carry their own scheme are returned
// unchanged.
func ResolveReference(base, ref string) string {
	if ref == "" || SchemeOf(ref) != "" {
		return ref
	}

	switch scheme := SchemeOf(base); scheme {
	case "":
		if filepath.IsAbs(ref) || base == "" {
			return ref
		}
		return filepath.Join(filepath.Dir(base), ref)
	case "file":
		bu, err := url.Parse(base)
		if err != nil {
			return ref
		}
		return filepath.Join(filepath.Dir(filepath.FromSlash(bu.Path)), ref)
	case "http", "https":
		bu, err := url.Parse(base)
		if err != nil {
			return ref
		}
		ru, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return bu.ResolveReference(ru).String()
	case SchemeMerged:
		// A merged document has no single directory to be relative to.
		return ref
	default:
		p := strings.TrimPrefix(base[len(scheme)+1:], "/")
		if strings.HasPrefix(ref, "/") {
			return scheme + ":" + strings.TrimPrefix(path.Clean(ref), "/")
		}
		joined := path.Join(path.Dir(p), ref)
		return scheme + ":" + strings.TrimPrefix(joined, "/")
	}
}

// LocalPath maps uri to the local file it would be read from, for the
// schemes backed by the file system. It reports false for every other
// scheme.
func LocalPath(env Environment, uri string) (string, bool) {
	scheme := SchemeOf(uri)
	var root string
	switch scheme {
	case "", "file":
		return deps.FilePath(uri)
	case SchemeResource:
		root = env.ContentRoot
	case SchemeAsset:
		root = env.AssetRoot
	default:
		return "", false
	}
	rel := cleanRel(strings.TrimPrefix(uri[len(scheme)+1:], "//"))
	if root == "" || rel == "" {
		return "", false
	}
	return deps.FilePath(filepath.Join(root, filepath.FromSlash(rel)))
}
