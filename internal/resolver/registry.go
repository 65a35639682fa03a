// Package resolver dispatches resource URIs to scheme handlers.
//
// Handlers are found in four tiers, in order: overrides registered on one
// Resolver, handlers that Resolver already built from the shared Registry,
// factories in the shared Registry, and finally the default loader for
// plain file paths and http(s) URLs. A scheme missing from every tier is a
// resolution error.
package resolver

import (
	"context"
	"io/fs"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Request is one resolution handed to a Handler.
type Request struct {
	// URI is the reference exactly as it was requested.
	URI string
	// URL is URI parsed. Opaque URIs such as res:site/a.xml keep their
	// path in URL.Opaque.
	URL *url.URL
	// Resolver is the resolver the request came through, for handlers that
	// resolve further URIs themselves.
	Resolver *Resolver
}

// Path returns the scheme-specific path of the request.
func (r Request) Path() string {
	if r.URL.Opaque != "" {
		return r.URL.Opaque
	}
	return r.URL.Path
}

// Resource is resolved content plus the files it was read from.
type Resource struct {
	URI          string
	Data         []byte
	Dependencies []string
}

// Handler resolves URIs of one scheme.
type Handler interface {
	Resolve(ctx context.Context, req Request) (*Resource, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (*Resource, error)

// Resolve implements Handler.
func (f HandlerFunc) Resolve(ctx context.Context, req Request) (*Resource, error) {
	return f(ctx, req)
}

// Environment is what handler factories may draw on.
type Environment struct {
	ContentRoot string
	AssetRoot   string
	Embedded    fs.FS
	HTTPClient  *http.Client
}

func (e Environment) httpClient() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	return http.DefaultClient
}

// Factory builds a handler for one resolver instance.
type Factory func(env Environment) (Handler, error)

// Registration binds a scheme to its factory.
type Registration struct {
	Scheme string
	New    Factory
}

// Registry maps schemes to handler factories. It is populated once during
// startup and read concurrently afterwards.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds scheme to factory, replacing any previous binding.
func (r *Registry) Register(scheme string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(scheme)] = factory
}

// RegisterAll registers each entry in order.
func (r *Registry) RegisterAll(regs []Registration) {
	for _, reg := range regs {
		r.Register(reg.Scheme, reg.New)
	}
}

// Lookup returns the factory for scheme.
func (r *Registry) Lookup(scheme string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[strings.ToLower(scheme)]
	return f, ok
}

// Schemes lists the registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for s := range r.factories {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry holding the built-in handlers.
// It is populated on first call.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		defaultRegistry.RegisterAll(Builtins())
	})
	return defaultRegistry
}

// Builtins returns the statically known scheme handlers.
func Builtins() []Registration {
	return []Registration{
		{Scheme: SchemeResource, New: newRootHandler(func(e Environment) string { return e.ContentRoot })},
		{Scheme: SchemeAsset, New: newRootHandler(func(e Environment) string { return e.AssetRoot })},
		{Scheme: SchemeEmbed, New: newEmbedHandler},
		{Scheme: SchemeMerged, New: newMergedHandler},
	}
}
