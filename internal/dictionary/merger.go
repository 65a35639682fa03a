package dictionary

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/conneroisu/glossa/internal/config"
	cerrors "github.com/conneroisu/glossa/internal/errors"
	"github.com/conneroisu/glossa/internal/logging"
	"github.com/conneroisu/glossa/internal/resolver"
)

// Merger builds fallback-resolved dictionaries for content groups.
type Merger struct {
	config   *config.Config
	registry *resolver.Registry
	env      resolver.Environment
	logger   logging.Logger
}

// NewMerger creates a merger. Dictionary locations are resolved through a
// fresh resolver over registry on every Merge.
func NewMerger(cfg *config.Config, registry *resolver.Registry, env resolver.Environment, logger logging.Logger) *Merger {
	return &Merger{
		config:   cfg,
		registry: registry,
		env:      env,
		logger:   logging.OrDiscard(logger).WithComponent("dictionary"),
	}
}

// Location returns where the dictionary of g for locale lives. Relative
// templates are relative to the content root.
func (m *Merger) Location(g *config.GroupConfig, locale string) string {
	p := g.DictionaryPath(locale)
	if p == "" || resolver.SchemeOf(p) != "" || filepath.IsAbs(p) || m.env.ContentRoot == "" {
		return p
	}
	return filepath.Join(m.env.ContentRoot, p)
}

// Candidates returns the local files the dictionaries of locale's chain
// would be read from, whether or not they exist yet.
func (m *Merger) Candidates(group, locale string) ([]string, error) {
	g, chain, err := m.chain(group, locale)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, l := range chain {
		if p, ok := resolver.LocalPath(m.env, m.Location(g, l)); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Merger) chain(group, locale string) (*config.GroupConfig, []string, error) {
	g, ok := m.config.Group(group)
	if !ok {
		return nil, nil, cerrors.NewConfigError(cerrors.ErrCodeUnknownGroup, fmt.Sprintf("unknown content group %q", group))
	}
	chain, err := m.config.Chain(locale)
	if err != nil {
		return nil, nil, err
	}
	return g, chain, nil
}

// Merge loads every dictionary along locale's fallback chain and merges
// them, most specific first. Absent dictionaries are skipped; when none
// exists the result is empty and a warning is logged. An unconfigured
// locale is an UnconfiguredLocaleError.
func (m *Merger) Merge(ctx context.Context, group, locale string) (*File, error) {
	g, chain, err := m.chain(group, locale)
	if err != nil {
		return nil, err
	}

	r := resolver.New(m.registry, m.env, m.logger)
	sources := make([]*Source, 0, len(chain))
	for _, l := range chain {
		src, err := m.load(ctx, r, m.Location(g, l), l)
		if err != nil {
			return nil, err
		}
		if src != nil {
			sources = append(sources, src)
		}
	}

	f := Merge(g.Name, chain[0], chain, sources)
	if f.Empty() {
		m.logger.Warn(ctx, cerrors.NewMissingDictionaryError(g.Name, chain[0]),
			"No dictionary in fallback chain", "group", g.Name, "chain", chain)
	} else {
		m.logger.Debug(ctx, "Merged dictionary", "group", g.Name, "locale", chain[0],
			"sources", len(sources), "phrases", f.Len())
	}
	return f, nil
}

func (m *Merger) load(ctx context.Context, r *resolver.Resolver, location, locale string) (*Source, error) {
	if location == "" {
		return nil, nil
	}
	res, err := r.Resolve(ctx, location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	src, err := ParseSource(res.URI, locale, res.Data)
	if err != nil {
		return nil, err
	}
	src.Dependencies = res.Dependencies
	return src, nil
}
