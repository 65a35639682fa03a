package translate

import (
	"context"
	"sort"
	"sync"

	"github.com/beevik/etree"

	"github.com/conneroisu/glossa/internal/logging"
)

// NodeType is the kind of source node a NodeHandler is registered for.
type NodeType int

const (
	ElementNode NodeType = iota
	ProcInstNode
)

func (t NodeType) String() string {
	if t == ProcInstNode {
		return "procinst"
	}
	return "element"
}

// NodeKey identifies a node handler: the node type and its qualified name,
// "prefix:local" for elements and the target for processing instructions.
type NodeKey struct {
	Type NodeType
	Name string
}

// NodeHandler rewrites one source node while the document is copied. The
// returned tokens replace the node in the output.
type NodeHandler func(c *Context, tok etree.Token) ([]etree.Token, error)

// TextHandler supplies the value of a ${name} placeholder.
type TextHandler func(c *Context) (string, error)

// Registry maps node keys and placeholder names to handlers. It is safe for
// concurrent use; registration normally happens once at startup.
type Registry struct {
	mu     sync.RWMutex
	nodes  map[NodeKey]NodeHandler
	texts  map[string]TextHandler
	logger logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	return &Registry{
		nodes:  make(map[NodeKey]NodeHandler),
		texts:  make(map[string]TextHandler),
		logger: logging.OrDiscard(logger).WithComponent("translate"),
	}
}

// HandleNode registers h for nodes of type t named qname. A later
// registration for the same key replaces the earlier one.
func (r *Registry) HandleNode(t NodeType, qname string, h NodeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := NodeKey{Type: t, Name: qname}
	if _, exists := r.nodes[key]; exists {
		r.logger.Warn(context.Background(), nil, "Replacing node handler", "type", t.String(), "name", qname)
	}
	r.nodes[key] = h
}

// HandleText registers h for the ${name} placeholder. A later registration
// for the same name replaces the earlier one.
func (r *Registry) HandleText(name string, h TextHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.texts[name]; exists {
		r.logger.Warn(context.Background(), nil, "Replacing text handler", "name", name)
	}
	r.texts[name] = h
}

func (r *Registry) node(t NodeType, qname string) (NodeHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.nodes[NodeKey{Type: t, Name: qname}]
	return h, ok
}

func (r *Registry) text(name string) (TextHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.texts[name]
	return h, ok
}

// NodeKeys lists the registered node handlers, sorted by name.
func (r *Registry) NodeKeys() []NodeKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]NodeKey, 0, len(r.nodes))
	for k := range r.nodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].Type < keys[j].Type
	})
	return keys
}

// TextNames lists the registered placeholder names, sorted.
func (r *Registry) TextNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.texts))
	for name := range r.texts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
