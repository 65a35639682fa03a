// Package include expands include directives in content documents.
//
// A directive is an element in the XInclude namespace:
//
//	<xi:include href="shared/footer.xml" xpath="/footer/nav" parse="tree"/>
//
// href names another document relative to the including one; without it the
// selector applies to the current document. The selector is an etree path.
// parse is tree (the default), text or html. Content inside <xi:literal> is
// left alone.
//
// Failures never abort a resolution. A failure in a nested include fails
// every enclosing include up to the outermost one in the document being
// processed, which is then removed or, in developer mode, replaced by an
// <xi:error> element carrying the message.
package include

import (
	"context"
	"fmt"
	"slices"

	"github.com/beevik/etree"

	"github.com/conneroisu/glossa/internal/deps"
	"github.com/conneroisu/glossa/internal/document"
	cerrors "github.com/conneroisu/glossa/internal/errors"
	"github.com/conneroisu/glossa/internal/logging"
	"github.com/conneroisu/glossa/internal/resolver"
)

// DefaultMaxDepth bounds include nesting.
const DefaultMaxDepth = 10

// Options configure a Processor.
type Options struct {
	// Prefix is the namespace prefix of directive elements. Default "xi".
	Prefix string
	// DeveloperMode renders failed includes as diagnostic elements.
	DeveloperMode bool
	// MaxDepth overrides DefaultMaxDepth when positive.
	MaxDepth int
}

// Failure is one include that could not be expanded.
type Failure struct {
	ID  string
	Err error
}

// Report summarises one Process call.
type Report struct {
	// Includes counts expanded directives at every level.
	Includes int
	// Failures holds one entry per failed outermost include.
	Failures []Failure
	// Missing holds selectors that matched nothing.
	Missing []Failure
	// Unresolved lists the targets that could not be fetched, at any
	// level. A target created later can change the result.
	Unresolved []string
}

// Processor expands include directives. It holds no per-call state and may
// be shared.
type Processor struct {
	opts   Options
	markup markup
	logger logging.Logger
}

// NewProcessor creates a processor.
func NewProcessor(opts Options, logger logging.Logger) *Processor {
	if opts.Prefix == "" {
		opts.Prefix = "xi"
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Processor{
		opts:   opts,
		markup: markup{prefix: opts.Prefix},
		logger: logging.OrDiscard(logger).WithComponent("include"),
	}
}

// Assemble loads uri through r and expands its includes.
func (p *Processor) Assemble(ctx context.Context, r *resolver.Resolver, uri string) (*document.Document, *Report, error) {
	doc, err := r.Load(ctx, uri)
	if err != nil {
		return nil, nil, err
	}
	return p.Process(ctx, r, doc)
}

// Process returns a copy of doc with every include expanded. Targets are
// fetched through r, whose dependency tracker ends up holding every file
// that contributed. The returned error is only set when ctx ends.
func (p *Processor) Process(ctx context.Context, r *resolver.Resolver, doc *document.Document) (*document.Document, *Report, error) {
	op := logging.StartOperation(p.logger, "include")

	work := doc.Copy()
	s := &state{
		p:        p,
		ctx:      ctx,
		resolver: r,
		docs:     make(map[string]*document.Document),
		raw:      make(map[string][]byte),
		cache:    make(map[string]map[string]*fragment),
		report:   &Report{},
	}
	s.expand(&work.Element, scope{location: doc.Location, tree: work})
	if s.fatal != nil {
		op.EndWithError(ctx, s.fatal)
		return nil, nil, s.fatal
	}

	tracker := deps.New()
	tracker.Add(doc.Dependencies()...)
	tracker.Merge(r.Dependencies())

	op.End(ctx, "document", doc.Location, "includes", s.report.Includes, "failures", len(s.report.Failures))
	return document.New(doc.Location, work, tracker.All()), s.report, nil
}

// scope is the document intra-document selectors apply to.
type scope struct {
	location string
	tree     *etree.Document
}

// state belongs to one Process call.
type state struct {
	p        *Processor
	ctx      context.Context
	resolver *resolver.Resolver

	docs  map[string]*document.Document
	raw   map[string][]byte
	cache map[string]map[string]*fragment

	// stack holds the identifiers of the includes being expanded.
	stack []string
	// err is the first failure below the current outermost include.
	err    error
	fatal  error
	report *Report
}

type splice struct {
	el     *etree.Element
	tokens []etree.Token
}

// expand replaces the directives below container. Directives are collected
// before anything is spliced so the walk never sees a modified tree.
func (s *state) expand(container *etree.Element, sc scope) {
	directives := s.p.markup.collect(container, nil)
	splices := make([]splice, 0, len(directives))
	for _, el := range directives {
		if s.fatal != nil || (s.err != nil && len(s.stack) > 0) {
			break
		}
		splices = append(splices, splice{el: el, tokens: s.include(newDirective(el), sc)})
	}
	for _, sp := range splices {
		replace(sp.el, sp.tokens)
	}
}

func replace(el *etree.Element, tokens []etree.Token) {
	parent := el.Parent()
	if parent == nil {
		return
	}
	idx := el.Index()
	parent.RemoveChildAt(idx)
	for i, tok := range tokens {
		parent.InsertChildAt(idx+i, tok)
	}
}

func (s *state) include(d Directive, sc scope) []etree.Token {
	if err := s.ctx.Err(); err != nil {
		s.fatal = err
		return nil
	}

	target := sc.location
	if d.Href != "" {
		target = resolver.ResolveReference(sc.location, d.Href)
	}
	id := Identifier(target, d.Selector)

	if d.Href == "" && d.Selector == "" {
		return s.fail(id, cerrors.NewResolutionError(cerrors.ErrCodeBadURI, "include has neither href nor xpath", nil).
			WithLocation(sc.location))
	}
	if d.Parse != ParseTree && d.Parse != ParseText && d.Parse != ParseHTML {
		return s.fail(id, cerrors.NewResolutionError(cerrors.ErrCodeParseFailed,
			fmt.Sprintf("unknown parse mode %q", d.Parse), nil))
	}
	if slices.Contains(s.stack, id) {
		return s.fail(id, cerrors.NewCycleError(cerrors.ErrCodeIncludeCycle,
			fmt.Sprintf("include cycle through %s", id)).WithContext("stack", slices.Clone(s.stack)))
	}
	if len(s.stack) >= s.p.opts.MaxDepth {
		return s.fail(id, cerrors.NewDepthError(
			fmt.Sprintf("include depth exceeds %d at %s", s.p.opts.MaxDepth, id)))
	}

	var (
		frag *fragment
		next scope
		err  error
	)
	if d.Href == "" {
		frag, err = s.local(d, sc)
		next = sc
	} else {
		frag, next, err = s.external(d, target)
	}
	if err != nil {
		if cerrors.IsType(err, cerrors.ErrorTypeMissingTarget) {
			return s.missing(id, err)
		}
		return s.fail(id, err)
	}

	tokens := frag.copy()
	if d.Parse != ParseTree {
		s.report.Includes++
		return tokens
	}

	holder := etree.NewElement("fragment")
	for _, tok := range tokens {
		holder.AddChild(tok)
	}
	s.stack = append(s.stack, id)
	s.expand(holder, next)
	s.stack = s.stack[:len(s.stack)-1]

	if s.fatal != nil {
		return nil
	}
	if s.err != nil {
		return s.fail(id, s.err)
	}

	s.report.Includes++
	return slices.Clone(holder.Child)
}

// fail records err against the include id. Below the outermost include the
// error is only remembered so the enclosing includes fail in turn.
func (s *state) fail(id string, err error) []etree.Token {
	if len(s.stack) > 0 {
		if s.err == nil {
			s.err = err
		}
		return nil
	}
	s.err = nil
	s.report.Failures = append(s.report.Failures, Failure{ID: id, Err: err})
	s.p.logger.Warn(s.ctx, err, "Include failed", "include", id)
	if s.p.opts.DeveloperMode {
		return []etree.Token{s.p.markup.diagnostic("error", id, err)}
	}
	return nil
}

// missing leaves a visible placeholder for a selector that matched nothing.
func (s *state) missing(id string, err error) []etree.Token {
	s.report.Missing = append(s.report.Missing, Failure{ID: id, Err: err})
	s.p.logger.Warn(s.ctx, err, "Include target not found", "include", id)
	return []etree.Token{s.p.markup.diagnostic("missing", id, err)}
}

// local selects from the current document.
func (s *state) local(d Directive, sc scope) (*fragment, error) {
	selected, err := selectElements(sc.tree, d.Selector)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, cerrors.NewMissingTargetError(fmt.Sprintf("%q matches nothing", d.Selector)).WithLocation(sc.location)
	}
	for _, el := range selected {
		if isAncestorOrSelf(el, d.Element) {
			return nil, cerrors.NewCycleError(cerrors.ErrCodeSelfInclude,
				fmt.Sprintf("%q selects the include itself", d.Selector)).WithLocation(sc.location)
		}
	}
	if d.Parse == ParseText {
		return textFragment(selectedText(selected)), nil
	}
	return treeFragment(selected), nil
}

// external fetches target once per (target, selector, mode) and returns the
// scope nested includes of the fragment resolve against.
func (s *state) external(d Directive, target string) (*fragment, scope, error) {
	key := d.Selector + "|" + d.Parse + "|" + d.Encoding
	byKey := s.cache[target]
	if byKey == nil {
		byKey = make(map[string]*fragment)
		s.cache[target] = byKey
	}

	var next scope
	if doc, ok := s.docs[target]; ok {
		next = scope{location: target, tree: doc.Tree()}
	}
	if f, ok := byKey[key]; ok {
		return f, next, nil
	}

	var (
		f   *fragment
		err error
	)
	switch d.Parse {
	case ParseText:
		f, err = s.fetchText(d, target)
	case ParseHTML:
		f, err = s.fetchHTML(d, target)
	default:
		var doc *document.Document
		if doc, err = s.load(target); err == nil {
			next = scope{location: target, tree: doc.Tree()}
			f, err = s.selectFrom(doc.Tree(), target, d.Selector)
		}
	}
	if err != nil {
		return nil, next, err
	}
	byKey[key] = f
	return f, next, nil
}

func (s *state) selectFrom(tree *etree.Document, target, selector string) (*fragment, error) {
	selected, err := selectElements(tree, selector)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, cerrors.NewMissingTargetError(fmt.Sprintf("%q matches nothing", selector)).WithLocation(target)
	}
	return treeFragment(selected), nil
}

func (s *state) fetchText(d Directive, target string) (*fragment, error) {
	if d.Selector != "" {
		doc, err := s.load(target)
		if err != nil {
			return nil, err
		}
		selected, err := selectElements(doc.Tree(), d.Selector)
		if err != nil {
			return nil, err
		}
		if len(selected) == 0 {
			return nil, cerrors.NewMissingTargetError(fmt.Sprintf("%q matches nothing", d.Selector)).WithLocation(target)
		}
		return textFragment(selectedText(selected)), nil
	}
	data, err := s.fetch(target)
	if err != nil {
		return nil, err
	}
	text, err := decode(data, d.Encoding)
	if err != nil {
		return nil, err
	}
	return textFragment(text), nil
}

func (s *state) fetchHTML(d Directive, target string) (*fragment, error) {
	data, err := s.fetch(target)
	if err != nil {
		return nil, err
	}
	text, err := decode(data, d.Encoding)
	if err != nil {
		return nil, err
	}
	tree, err := parseHTML(text)
	if err != nil {
		return nil, err
	}
	if d.Selector == "" {
		return htmlBody(tree), nil
	}
	return s.selectFrom(tree, target, d.Selector)
}

func (s *state) load(target string) (*document.Document, error) {
	if doc, ok := s.docs[target]; ok {
		return doc, nil
	}
	doc, err := s.resolver.Load(s.ctx, target)
	if err != nil {
		s.unresolved(target)
		return nil, err
	}
	s.docs[target] = doc
	return doc, nil
}

func (s *state) fetch(target string) ([]byte, error) {
	if data, ok := s.raw[target]; ok {
		return data, nil
	}
	res, err := s.resolver.Resolve(s.ctx, target)
	if err != nil {
		s.unresolved(target)
		return nil, err
	}
	s.raw[target] = res.Data
	return res.Data, nil
}

func (s *state) unresolved(target string) {
	if !slices.Contains(s.report.Unresolved, target) {
		s.report.Unresolved = append(s.report.Unresolved, target)
	}
}

func isAncestorOrSelf(candidate, el *etree.Element) bool {
	for e := el; e != nil; e = e.Parent() {
		if e == candidate {
			return true
		}
	}
	return false
}
