// Package orchestrator ties the pipeline together. It assembles a resource
// through the include processor, merges the dictionaries of its content
// group, localizes it through the translation engine and persists the
// output, regenerating only when something the output depends on changed.
//
// An Orchestrator is safe for concurrent use. Each call gets its own
// resolver and include state; dictionaries and results are shared through
// locked caches.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/glossa/internal/cache"
	"github.com/conneroisu/glossa/internal/config"
	"github.com/conneroisu/glossa/internal/deps"
	"github.com/conneroisu/glossa/internal/dictionary"
	"github.com/conneroisu/glossa/internal/document"
	cerrors "github.com/conneroisu/glossa/internal/errors"
	"github.com/conneroisu/glossa/internal/include"
	"github.com/conneroisu/glossa/internal/logging"
	"github.com/conneroisu/glossa/internal/resolver"
	"github.com/conneroisu/glossa/internal/translate"
)

// Options carry the collaborators an Orchestrator does not build from the
// configuration.
type Options struct {
	// Registry is the process-wide scheme registry. Nil means
	// resolver.Default().
	Registry *resolver.Registry
	// Embedded backs the embed: scheme.
	Embedded fs.FS
	// HTTPClient fetches http(s) resources.
	HTTPClient *http.Client
	// Template overrides the configured transform template.
	Template *translate.Template
	// Handlers overrides the node and text handler registry. Nil means a
	// registry with the built-in handlers.
	Handlers *translate.Registry
}

// Request asks for one localized resource.
type Request struct {
	// Path is the resource path relative to the content root. A locale
	// suffix in it selects the locale when Locale is empty.
	Path   string
	Locale string
	Mode   translate.Mode
	// Force regenerates even when the previous output is current.
	Force bool
}

// Result is one localized resource.
type Result struct {
	// Resource is the neutral resource path.
	Resource string
	Locale   string
	Mode     translate.Mode
	Group    string
	// Source is the URI the content was read from, possibly a locale
	// sibling of Resource.
	Source string
	// Output is the generated file.
	Output   string
	Document *document.Document
	// Dependencies are the files whose change invalidates Output.
	Dependencies []string
	// Candidates are include targets that did not exist when Output was
	// generated. Creating one invalidates Output.
	Candidates []string
	// Generated is when Output was produced.
	Generated time.Time
	// Regenerated is false when an existing output was reused.
	Regenerated bool
	// Reason says why Output was regenerated.
	Reason      string
	Fingerprint string
	// Stats and Report are only set when the output was regenerated.
	Stats  *translate.Stats
	Report *include.Report
}

// reused returns a copy of r describing it as an output that was reused
// rather than regenerated.
func (r *Result) reused() *Result {
	c := *r
	c.Regenerated = false
	c.Reason = ""
	c.Stats = nil
	c.Report = nil
	return &c
}

// Orchestrator is the entry point of the pipeline.
type Orchestrator struct {
	config       *config.Config
	registry     *resolver.Registry
	env          resolver.Environment
	processor    *include.Processor
	engine       *translate.Engine
	handlers     *translate.Registry
	dictionaries *dictionary.Cache
	results      *cache.Cache[*Result]
	store        *Store
	logger       logging.Logger
}

// New builds an orchestrator for cfg.
func New(cfg *config.Config, opts Options, logger logging.Logger) (*Orchestrator, error) {
	logger = logging.OrDiscard(logger)

	registry := opts.Registry
	if registry == nil {
		registry = resolver.Default()
	}
	env := resolver.Environment{
		ContentRoot: cfg.Content.Root,
		AssetRoot:   cfg.Content.Assets,
		Embedded:    opts.Embedded,
		HTTPClient:  opts.HTTPClient,
	}

	tmpl := opts.Template
	if tmpl == nil && cfg.Template != "" {
		var err error
		if tmpl, err = translate.LoadTemplate(cfg.Template); err != nil {
			return nil, err
		}
	}
	if tmpl == nil {
		tmpl = translate.DefaultTemplate()
	}

	handlers := opts.Handlers
	if handlers == nil {
		handlers = translate.NewRegistry(logger)
		translate.RegisterBuiltins(handlers, tmpl.Prefix)
	}

	merger := dictionary.NewMerger(cfg, registry, env, logger)

	return &Orchestrator{
		config:   cfg,
		registry: registry,
		env:      env,
		processor: include.NewProcessor(include.Options{
			DeveloperMode: cfg.Content.DeveloperMode,
		}, logger),
		engine:       translate.NewEngine(tmpl, handlers, logger),
		handlers:     handlers,
		dictionaries: dictionary.NewCache(merger, logger),
		results:      cache.New[*Result](cfg.Cache.MaxEntries, cfg.Cache.TTL, logger),
		store:        NewStore(cfg.Content.Output),
		logger:       logger.WithComponent("orchestrator"),
	}, nil
}

// Handlers returns the node and text handler registry consulted while
// localizing. Handlers registered here apply to every later call.
func (o *Orchestrator) Handlers() *translate.Registry {
	return o.handlers
}

// Results returns the in-memory result cache.
func (o *Orchestrator) Results() *cache.Cache[*Result] {
	return o.results
}

// Dictionaries returns the shared dictionary cache.
func (o *Orchestrator) Dictionaries() *dictionary.Cache {
	return o.dictionaries
}

// Store returns the output store.
func (o *Orchestrator) Store() *Store {
	return o.store
}

// Config returns the configuration the orchestrator was built with.
func (o *Orchestrator) Config() *config.Config {
	return o.config
}

func (o *Orchestrator) newResolver() *resolver.Resolver {
	return resolver.New(o.registry, o.env, o.logger)
}

// uri maps a resource path onto the resource scheme. Paths that already
// carry a scheme are kept.
func uri(p string) string {
	if resolver.SchemeOf(p) != "" {
		return p
	}
	return resolver.SchemeResource + ":" + strings.TrimPrefix(filepath.ToSlash(p), "/")
}

// Resolve assembles the resource at p with every include expanded, without
// localizing it.
func (o *Orchestrator) Resolve(ctx context.Context, p string) (*document.Document, *include.Report, error) {
	return o.processor.Assemble(ctx, o.newResolver(), uri(p))
}

// target is a request with its names resolved against the configuration.
type target struct {
	name   document.ResourceName
	locale string
	chain  []string
	group  *config.GroupConfig
}

func (o *Orchestrator) target(req Request) (*target, error) {
	rel := strings.TrimPrefix(filepath.ToSlash(req.Path), "/")
	name := document.ParseResourceName(rel, o.config.LocaleNames())

	locale := req.Locale
	if locale == "" {
		locale = name.Locale
	}
	if locale == "" {
		locale = o.config.DefaultLocale
	}
	if canonical, err := config.CanonicalLocale(locale); err == nil {
		locale = canonical
	}

	chain, err := o.config.Chain(locale)
	if err != nil {
		return nil, err
	}

	name = name.Neutral()
	group, ok := o.config.GroupFor(name.Path())
	if !ok {
		return nil, cerrors.NewConfigError(cerrors.ErrCodeUnknownGroup,
			fmt.Sprintf("no content group contains %q", name.Path()))
	}

	return &target{name: name, locale: locale, chain: chain, group: group}, nil
}

// source returns the most specific existing locale sibling of the
// resource along the chain, or the neutral resource.
func (o *Orchestrator) source(t *target) string {
	for _, l := range t.chain {
		candidate := uri(t.name.WithLocale(l).Path())
		if local, ok := resolver.LocalPath(o.env, candidate); ok {
			if _, err := os.Stat(local); err == nil {
				return candidate
			}
		}
	}
	return uri(t.name.Path())
}

// Localize returns the localized resource, regenerating it when the
// previous output is missing or out of date. An unconfigured locale is
// an UnconfiguredLocaleError; a translatable group without any dictionary
// for the locale is a MissingDictionaryError.
func (o *Orchestrator) Localize(ctx context.Context, req Request) (*Result, error) {
	t, err := o.target(req)
	if err != nil {
		return nil, err
	}

	src := o.source(t)
	output := o.store.Path(t.name, t.locale, req.Mode)
	key := cache.Key(t.name.Path(), t.locale, req.Mode.String())

	unlock := o.store.lock(output)
	defer unlock()

	reason := reasonForced
	if !req.Force {
		if res, ok := o.results.Get(key); ok {
			if reason = o.staleness(t, src, res.Source, res.Generated, res.Dependencies, res.Candidates); reason == "" {
				return res.reused(), nil
			}
		} else {
			m, why := o.stored(t, src, output, req.Mode)
			if reason = why; reason == "" {
				res, err := o.reuse(t, output, m, req.Mode)
				if err == nil {
					o.results.Set(key, res, res.Dependencies)
					return res, nil
				}
				o.logger.Warn(ctx, err, "Cannot reuse output", "output", output)
				reason = reasonUnreadable
			}
		}
	}

	res, err := o.generate(ctx, t, src, output, req.Mode, reason)
	if err != nil {
		o.results.Delete(key)
		if rerr := o.store.Remove(output); rerr != nil {
			o.logger.Warn(ctx, rerr, "Cannot remove previous output", "output", output)
		}
		return nil, err
	}
	o.results.Set(key, res, res.Dependencies)
	return res, nil
}

// Reasons for regenerating an output.
const (
	reasonForced        = "forced"
	reasonNoOutput      = "no output"
	reasonMismatch      = "manifest mismatch"
	reasonUnreadable    = "unreadable output"
	reasonSourceMoved   = "source moved"
	reasonSourceChanged = "source changed"
	reasonDictionary    = "dictionary changed"
	reasonIncludeAdded  = "include created"
)

// stored checks the persisted output of t and returns its manifest with
// the reason it must be regenerated, or "" when it is current.
func (o *Orchestrator) stored(t *target, src, output string, mode translate.Mode) (*Manifest, string) {
	m, err := o.store.Manifest(output)
	if err != nil {
		return nil, reasonNoOutput
	}
	if m.Locale != t.locale || m.Mode != mode.String() {
		return nil, reasonMismatch
	}
	return m, o.staleness(t, src, m.Source, m.Generated, m.Dependencies, m.Candidates)
}

// staleness applies the regeneration policy to an output generated at
// generated from prevSource with deps. A dictionary newer than the output
// also refreshes the group's dictionary collection.
func (o *Orchestrator) staleness(t *target, src, prevSource string, generated time.Time, dependencies, candidates []string) string {
	if src != prevSource {
		return reasonSourceMoved
	}
	if o.dictionaryChanged(t, generated) {
		return reasonDictionary
	}
	if document.LatestModTime(dependencies).After(generated) {
		return reasonSourceChanged
	}
	if created(candidates, generated) {
		return reasonIncludeAdded
	}
	return ""
}

// created reports whether one of paths now exists with a modification time
// after since.
func created(paths []string, since time.Time) bool {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.ModTime().After(since) {
			return true
		}
	}
	return false
}

// candidates maps the include targets that could not be fetched onto the
// local files they would be read from.
func (o *Orchestrator) candidates(report *include.Report) []string {
	if report == nil {
		return nil
	}
	var out []string
	for _, u := range report.Unresolved {
		p, ok := resolver.LocalPath(o.env, u)
		if ok && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// dictionaryChanged reports whether a dictionary along the chain, existing
// or newly created, was modified after since.
func (o *Orchestrator) dictionaryChanged(t *target, since time.Time) bool {
	if t.group.Dictionary == "" {
		return false
	}
	candidates, err := o.dictionaries.Merger().Candidates(t.group.Name, t.locale)
	if err != nil {
		return false
	}
	return created(candidates, since)
}

func (o *Orchestrator) reuse(t *target, output string, m *Manifest, mode translate.Mode) (*Result, error) {
	doc, fingerprint, err := o.store.Load(output, m)
	if err != nil {
		return nil, err
	}
	return &Result{
		Resource:     t.name.Path(),
		Locale:       t.locale,
		Mode:         mode,
		Group:        t.group.Name,
		Source:       m.Source,
		Output:       output,
		Document:     doc,
		Dependencies: doc.Dependencies(),
		Candidates:   m.Candidates,
		Generated:    m.Generated,
		Fingerprint:  fingerprint,
	}, nil
}

func (o *Orchestrator) generate(ctx context.Context, t *target, src, output string, mode translate.Mode, reason string) (*Result, error) {
	op := logging.StartOperation(o.logger, "localize")
	log := o.logger.With("resource", t.name.Path(), "locale", t.locale, "mode", mode.String())
	log.Info(ctx, "Regenerating", "reason", reason, "source", src)

	generated := time.Now()
	r := o.newResolver()

	doc, report, err := o.processor.Assemble(ctx, r, src)
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}

	dict, err := o.dictionary(ctx, t, reason)
	if err != nil {
		log.Error(ctx, err, "Dictionary unavailable")
		op.EndWithError(ctx, err)
		return nil, err
	}

	vars, err := o.variables(ctx, r, t)
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}

	tracker := deps.New()
	tracker.Add(doc.Dependencies()...)
	tracker.Merge(r.Dependencies())
	if dict != nil {
		tracker.Add(dict.Dependencies()...)
	}
	if o.config.Template != "" {
		tracker.Add(o.config.Template)
	}
	dependencies := tracker.All()
	candidates := o.candidates(report)

	params := translate.Params{
		Dictionary: dict,
		Locale:     t.locale,
		Fallbacks:  t.chain[1:],
		Variables:  vars,
		Resource:   t.name.Path(),
		Locales:    o.config.LocaleNames(),
	}
	tree, stats, err := o.engine.Localize(ctx, doc, params, mode)
	if err != nil {
		log.Error(ctx, err, "Transformation failed")
		op.EndWithError(ctx, err)
		return nil, err
	}

	m := &Manifest{
		Resource:     t.name.Path(),
		Locale:       t.locale,
		Mode:         mode.String(),
		Source:       src,
		Generated:    generated,
		Dependencies: dependencies,
		Candidates:   candidates,
	}
	err = o.store.Write(output, m, func(w io.Writer) error {
		if _, err := tree.WriteTo(w); err != nil {
			return cerrors.NewIOError(cerrors.ErrCodeWriteFailed, "cannot write output", err).WithLocation(output)
		}
		return nil
	})
	if err != nil {
		log.Error(ctx, err, "Cannot store output")
		op.EndWithError(ctx, err)
		return nil, err
	}

	op.End(ctx, "resource", t.name.Path(), "locale", t.locale, "dependencies", len(dependencies))
	return &Result{
		Resource:     t.name.Path(),
		Locale:       t.locale,
		Mode:         mode,
		Group:        t.group.Name,
		Source:       src,
		Output:       output,
		Document:     document.New(output, tree, dependencies),
		Dependencies: dependencies,
		Candidates:   candidates,
		Generated:    generated,
		Regenerated:  true,
		Reason:       reason,
		Fingerprint:  m.Fingerprint,
		Stats:        stats,
		Report:       report,
	}, nil
}

// dictionary returns the merged dictionary for t, or nil when its group is
// not translatable. A stale collection is rebuilt first.
func (o *Orchestrator) dictionary(ctx context.Context, t *target, reason string) (*dictionary.File, error) {
	if t.group.Dictionary == "" {
		return nil, nil
	}

	coll, err := o.dictionaries.Collection(ctx, t.group.Name)
	if err != nil {
		return nil, err
	}
	if reason == reasonDictionary || coll.Stale() {
		if _, err := o.dictionaries.Refresh(ctx, t.group.Name); err != nil {
			return nil, err
		}
	}

	f, err := o.dictionaries.Dictionary(ctx, t.group.Name, t.locale)
	if err != nil {
		return nil, err
	}
	if f.Empty() {
		return nil, cerrors.NewMissingDictionaryError(t.group.Name, t.locale)
	}
	return f, nil
}

// variables loads the group-level variable documents of t overlaid with
// those of its category.
func (o *Orchestrator) variables(ctx context.Context, r *resolver.Resolver, t *target) (map[string]*document.Document, error) {
	refs := make(map[string]string, len(t.group.Variables))
	for name, ref := range t.group.Variables {
		refs[name] = ref
	}
	if category := t.group.Category(t.name.Path()); category != "" {
		for name, ref := range t.group.Categories[category] {
			refs[name] = ref
		}
	}
	if len(refs) == 0 {
		return nil, nil
	}

	vars := make(map[string]*document.Document, len(refs))
	for name, ref := range refs {
		if resolver.SchemeOf(ref) == "" && !filepath.IsAbs(ref) {
			ref = uri(ref)
		}
		doc, err := r.Load(ctx, ref)
		if err != nil {
			return nil, cerrors.WrapTransform(err, cerrors.ErrCodeTransformFailed,
				fmt.Sprintf("cannot load variable %q", name))
		}
		vars[name] = doc
	}
	return vars, nil
}

// Locales returns the locales generated for the resource at p: its group's
// locales, or every configured locale when the group lists none.
func (o *Orchestrator) Locales(p string) ([]string, error) {
	t, err := o.target(Request{Path: p, Locale: o.config.DefaultLocale})
	if err != nil {
		return nil, err
	}
	if len(t.group.Locales) > 0 {
		return append([]string(nil), t.group.Locales...), nil
	}
	return o.config.LocaleNames(), nil
}

// LocalizeAll localizes the resource at req.Path for each of locales, or
// for every locale of its group when locales is empty, generating up to
// content.workers locales at once. One locale failing
// does not stop the others; their failures are returned together as a
// BatchError next to the results that succeeded. An unconfigured locale
// fails the whole batch before anything is generated.
func (o *Orchestrator) LocalizeAll(ctx context.Context, req Request, locales []string) ([]*Result, error) {
	if len(locales) == 0 {
		var err error
		if locales, err = o.Locales(req.Path); err != nil {
			return nil, err
		}
	}
	for _, l := range locales {
		if _, err := o.config.Chain(l); err != nil {
			return nil, err
		}
	}

	workers := o.config.Content.Workers
	if workers <= 0 || workers > len(locales) {
		workers = len(locales)
	}

	// Each locale writes its own slot so results keep the locale order.
	collector := cerrors.NewCollector()
	slots := make([]*Result, len(locales))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				r := req
				r.Locale = locales[j]
				res, err := o.Localize(ctx, r)
				if err != nil {
					collector.Add(locales[j], err)
					continue
				}
				slots[j] = res
			}
		}()
	}

dispatch:
	for j := range locales {
		select {
		case jobs <- j:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	results := make([]*Result, 0, len(locales))
	for _, res := range slots {
		if res != nil {
			results = append(results, res)
		}
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	if collector.HasErrors() {
		o.logger.Warn(ctx, collector.Err(), "Some locales failed", "resource", req.Path, "failed", collector.Len())
	}
	return results, collector.Err()
}

// Refresh localizes every resource in the result cache again. Results whose
// dependencies are unchanged come back as they are; the others are
// regenerated. Failures are collected per cache key.
func (o *Orchestrator) Refresh(ctx context.Context) ([]*Result, error) {
	collector := cerrors.NewCollector()
	var results []*Result
	for _, key := range o.results.Keys() {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		p, rest, _ := strings.Cut(key, "|")
		locale, mode, _ := strings.Cut(rest, "|")
		req := Request{Path: p, Locale: locale}
		if mode == translate.Diagnose.String() {
			req.Mode = translate.Diagnose
		}

		res, err := o.Localize(ctx, req)
		if err != nil {
			collector.Add(key, err)
			continue
		}
		results = append(results, res)
	}
	return results, collector.Err()
}
