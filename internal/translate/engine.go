// Package translate produces localized documents from source documents and
// merged dictionaries.
//
// Localization markup is described by a Template. With the default
// template a source document uses:
//
//	<l10n:phrase id="nav.home"/>            the phrase text
//	<a l10n:title="nav.home.tip">           title set to the phrase text
//	<l10n:value-of var="site" select="/site/name"/>  a variable value
//	<l10n:locale/>                          the locale name
//
// Other elements in the prefix namespace must have a registered handler.
package translate

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/beevik/etree"

	"github.com/conneroisu/glossa/internal/dictionary"
	"github.com/conneroisu/glossa/internal/document"
	cerrors "github.com/conneroisu/glossa/internal/errors"
	"github.com/conneroisu/glossa/internal/logging"
)

// Mode selects the output flavour.
type Mode int

const (
	// Translate produces the final output.
	Translate Mode = iota
	// Diagnose annotates every localized node with its provenance.
	Diagnose
)

func (m Mode) String() string {
	if m == Diagnose {
		return "diagnose"
	}
	return "translate"
}

// Status is the provenance of one localized phrase.
type Status string

const (
	StatusFound    Status = "found"
	StatusFallback Status = "fallback"
	StatusMissing  Status = "missing"
)

// Params are the inputs bound to one transformation.
type Params struct {
	Dictionary *dictionary.File
	Locale     string
	// Fallbacks is the ordered fallback chain after Locale.
	Fallbacks []string
	// Variables are named documents readable through value-of.
	Variables map[string]*document.Document
	// Resource is the neutral path of the resource being localized.
	Resource string
	// Locales are the configured locale names, used to parse resource
	// names in generated links.
	Locales []string
}

// Stats counts phrase lookups of one transformation.
type Stats struct {
	Found    int
	Fallback int
	Missing  []string
}

// Engine applies a Template and a handler Registry to documents. It holds
// no per-call state and may be shared.
type Engine struct {
	template *Template
	registry *Registry
	logger   logging.Logger
}

// NewEngine creates an engine. A nil template means DefaultTemplate and a
// nil registry means DefaultRegistry.
func NewEngine(t *Template, reg *Registry, logger logging.Logger) *Engine {
	if t == nil {
		t = DefaultTemplate()
	}
	if reg == nil {
		reg = NewRegistry(logger)
		RegisterBuiltins(reg, t.Prefix)
	}
	return &Engine{
		template: t,
		registry: reg,
		logger:   logging.OrDiscard(logger).WithComponent("translate"),
	}
}

// Template returns the engine's template.
func (e *Engine) Template() *Template {
	return e.template
}

// Transform localizes src and writes the result to w. Nothing is written
// when the transformation fails.
func (e *Engine) Transform(ctx context.Context, w io.Writer, src *document.Document, p Params, mode Mode) (*Stats, error) {
	out, stats, err := e.Localize(ctx, src, p, mode)
	if err != nil {
		return nil, err
	}
	if _, err := out.WriteTo(w); err != nil {
		return nil, cerrors.NewIOError(cerrors.ErrCodeWriteFailed, "failed to write output", err).WithLocation(src.Location)
	}
	return stats, nil
}

// Localize builds the localized tree of src.
func (e *Engine) Localize(ctx context.Context, src *document.Document, p Params, mode Mode) (*etree.Document, *Stats, error) {
	op := logging.StartOperation(e.logger, "transform")

	c := &Context{
		ctx:    ctx,
		engine: e,
		params: p,
		mode:   mode,
		chain:  chainOf(p.Locale, p.Fallbacks),
		stats:  &Stats{},
	}

	out := etree.NewDocument()
	out.WriteSettings = src.Tree().WriteSettings
	for _, tok := range src.Tree().Child {
		if err := c.copyInto(&out.Element, tok); err != nil {
			err = asTransformError(err, src.Location)
			op.EndWithError(ctx, err)
			return nil, nil, err
		}
	}

	if root := out.Root(); root != nil && mode == Diagnose {
		t := e.template
		root.CreateAttr("xmlns:"+t.Prefix, t.Namespace)
		root.CreateAttr(t.qname("locale"), p.Locale)
		root.CreateAttr(t.qname("chain"), strings.Join(c.chain, " "))
	}
	if e.template.Indent > 0 {
		out.Indent(e.template.Indent)
	}

	op.End(ctx, "document", src.Location, "locale", p.Locale, "mode", mode.String(),
		"found", c.stats.Found, "fallback", c.stats.Fallback, "missing", len(c.stats.Missing))
	return out, c.stats, nil
}

func asTransformError(err error, location string) error {
	if ce, ok := err.(*cerrors.ContentError); ok {
		if ce.Location == "" {
			ce = ce.WithLocation(location)
		}
		return ce
	}
	return cerrors.NewTransformError(cerrors.ErrCodeTransformFailed, "transformation failed", err).WithLocation(location)
}

func chainOf(locale string, fallbacks []string) []string {
	chain := []string{locale}
	for _, fb := range fallbacks {
		if !containsFold(chain, fb) {
			chain = append(chain, fb)
		}
	}
	return chain
}

// Context is the state of one transformation, passed to handlers.
type Context struct {
	ctx    context.Context
	engine *Engine
	params Params
	mode   Mode
	chain  []string
	stats  *Stats
}

// Context returns the context of the Transform call.
func (c *Context) Context() context.Context { return c.ctx }

// Locale returns the target locale.
func (c *Context) Locale() string { return c.params.Locale }

// Chain returns the target locale followed by its fallbacks.
func (c *Context) Chain() []string { return c.chain }

// Params returns the transformation inputs.
func (c *Context) Params() Params { return c.params }

// Mode returns the output mode.
func (c *Context) Mode() Mode { return c.mode }

// CopyChildren localizes the children of el and returns them detached.
func (c *Context) CopyChildren(el *etree.Element) ([]etree.Token, error) {
	holder := etree.NewElement("holder")
	for _, child := range el.Child {
		if err := c.copyInto(holder, child); err != nil {
			return nil, err
		}
	}
	return append([]etree.Token(nil), holder.Child...), nil
}

func (c *Context) copyInto(parent *etree.Element, tok etree.Token) error {
	switch t := tok.(type) {
	case *etree.Element:
		return c.copyElement(parent, t)
	case *etree.CharData:
		text, err := c.expand(t.Data)
		if err != nil {
			return err
		}
		if t.IsCData() {
			parent.CreateCData(text)
		} else {
			parent.CreateText(text)
		}
	case *etree.Comment:
		parent.CreateComment(t.Data)
	case *etree.ProcInst:
		if h, ok := c.engine.registry.node(ProcInstNode, t.Target); ok {
			return c.apply(parent, h, t)
		}
		parent.CreateProcInst(t.Target, t.Inst)
	case *etree.Directive:
		parent.CreateDirective(t.Data)
	}
	return nil
}

func (c *Context) apply(parent *etree.Element, h NodeHandler, tok etree.Token) error {
	tokens, err := h(c, tok)
	if err != nil {
		return err
	}
	for _, t := range tokens {
		parent.AddChild(t)
	}
	return nil
}

func (c *Context) copyElement(parent *etree.Element, el *etree.Element) error {
	if h, ok := c.engine.registry.node(ElementNode, el.FullTag()); ok {
		return c.apply(parent, h, el)
	}

	t := c.engine.template
	if el.Space == t.Prefix {
		switch el.Tag {
		case t.Phrase:
			return c.phrase(parent, el)
		case t.ValueOf:
			return c.valueOf(parent, el)
		case t.Locale:
			parent.CreateText(c.Locale())
			return nil
		default:
			return cerrors.NewTransformError(cerrors.ErrCodeTransformFailed,
				fmt.Sprintf("unknown element %s", el.FullTag()), nil)
		}
	}

	out := parent.CreateElement(el.FullTag())
	for _, a := range el.Attr {
		if err := c.copyAttr(out, a); err != nil {
			return err
		}
	}
	for _, child := range el.Child {
		if err := c.copyInto(out, child); err != nil {
			return err
		}
	}
	return nil
}

// copyAttr copies a onto out, translating attributes in the attribute
// prefix namespace.
func (c *Context) copyAttr(out *etree.Element, a etree.Attr) error {
	t := c.engine.template
	switch {
	case a.Space == "xmlns" && a.Key == t.Prefix:
		// The declaration is only needed while localization markup remains.
		if c.mode == Diagnose {
			out.CreateAttr(a.FullKey(), a.Value)
		}
		return nil
	case a.Space == t.AttributePrefix:
		text, status, source, err := c.lookup(a.Value)
		if err != nil {
			return err
		}
		out.CreateAttr(a.Key, text)
		if c.mode == Diagnose {
			out.CreateAttr(t.qname("status-"+a.Key), string(status))
			out.CreateAttr(t.qname("source-"+a.Key), source)
		}
		return nil
	}
	value, err := c.expand(a.Value)
	if err != nil {
		return err
	}
	out.CreateAttr(a.FullKey(), value)
	return nil
}

// lookup resolves a phrase id, applying the missing policy.
func (c *Context) lookup(id string) (string, Status, string, error) {
	if c.params.Dictionary != nil {
		if p, ok := c.params.Dictionary.Lookup(id); ok {
			if strings.EqualFold(p.Locale, c.Locale()) {
				c.stats.Found++
				return p.Text, StatusFound, p.Locale, nil
			}
			c.stats.Fallback++
			return p.Text, StatusFallback, p.Locale, nil
		}
	}

	c.stats.Missing = append(c.stats.Missing, id)
	switch c.engine.template.Missing {
	case MissingEmpty:
		return "", StatusMissing, "", nil
	case MissingMarker:
		return "[[" + id + "]]", StatusMissing, "", nil
	case MissingError:
		return "", StatusMissing, "", cerrors.NewTransformError(cerrors.ErrCodeTransformFailed,
			fmt.Sprintf("phrase %q has no translation for %s", id, c.Locale()), nil)
	default:
		return id, StatusMissing, "", nil
	}
}

func (c *Context) phrase(parent *etree.Element, el *etree.Element) error {
	t := c.engine.template
	id := strings.TrimSpace(el.SelectAttrValue(t.Key, ""))
	if id == "" {
		return cerrors.NewTransformError(cerrors.ErrCodeTransformFailed,
			fmt.Sprintf("%s without %s", el.FullTag(), t.Key), nil)
	}

	target := parent
	if c.mode == Diagnose {
		target = parent.CreateElement(el.FullTag())
		target.CreateAttr(t.Key, id)
	}

	text, status, source, err := c.lookup(id)
	if status == StatusMissing && len(el.Child) > 0 {
		// Inline content is the source-language default.
		children, cerr := c.CopyChildren(el)
		if cerr != nil {
			return cerr
		}
		for _, child := range children {
			target.AddChild(child)
		}
	} else {
		if err != nil {
			return err
		}
		appendPhrase(target, text)
	}

	if c.mode == Diagnose {
		target.CreateAttr("status", string(status))
		if source != "" {
			target.CreateAttr("source", source)
		}
	}
	return nil
}

// appendPhrase adds text to parent, parsing it as markup when it contains
// elements.
func appendPhrase(parent *etree.Element, text string) {
	if strings.ContainsRune(text, '<') {
		frag := etree.NewDocument()
		if err := frag.ReadFromString("<p>" + text + "</p>"); err == nil {
			for _, tok := range append([]etree.Token(nil), frag.Root().Child...) {
				parent.AddChild(tok)
			}
			return
		}
	}
	parent.CreateText(text)
}

func (c *Context) valueOf(parent *etree.Element, el *etree.Element) error {
	name := el.SelectAttrValue("var", "")
	doc, ok := c.params.Variables[name]
	if !ok || doc == nil {
		return cerrors.NewTransformError(cerrors.ErrCodeTransformFailed,
			fmt.Sprintf("unknown variable %q", name), nil)
	}

	selected := []*etree.Element{doc.Root()}
	if sel := el.SelectAttrValue("select", ""); sel != "" {
		p, err := etree.CompilePath(sel)
		if err != nil {
			return cerrors.NewTransformError(cerrors.ErrCodeTransformFailed,
				fmt.Sprintf("invalid select %q", sel), err)
		}
		selected = doc.Tree().FindElementsPath(p)
	}

	var b strings.Builder
	for _, s := range selected {
		b.WriteString(innerText(s))
	}
	parent.CreateText(b.String())
	return nil
}

func innerText(el *etree.Element) string {
	var b strings.Builder
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			b.WriteString(t.Data)
		case *etree.Element:
			b.WriteString(innerText(t))
		}
	}
	return b.String()
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z][A-Za-z0-9_.-]*)\}`)

// expand substitutes ${name} placeholders that have a text handler.
// Unknown placeholders are left as written.
func (c *Context) expand(s string) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}
	var firstErr error
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-1]
		h, ok := c.engine.registry.text(name)
		if !ok {
			return m
		}
		v, err := h(c)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return m
		}
		return v
	})
	return out, firstErr
}
