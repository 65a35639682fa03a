package config

import (
	"path"
	"strings"

	cerrors "github.com/conneroisu/glossa/internal/errors"
)

// Locale returns the configuration entry for name.
func (c *Config) Locale(name string) (*LocaleConfig, bool) {
	canonical, err := CanonicalLocale(name)
	if err != nil {
		return nil, false
	}
	for i := range c.Locales {
		if c.Locales[i].Name == canonical {
			return &c.Locales[i], true
		}
	}
	return nil, false
}

// Chain returns the fallback chain for locale: the locale itself, its
// configured fallbacks in order, and finally the default locale. Each name
// appears once. An unconfigured locale is an UnconfiguredLocaleError since
// no chain can be computed for it.
func (c *Config) Chain(locale string) ([]string, error) {
	entry, ok := c.Locale(locale)
	if !ok {
		return nil, cerrors.NewUnconfiguredLocaleError(locale)
	}

	chain := make([]string, 0, len(entry.Fallbacks)+2)
	seen := make(map[string]bool, cap(chain))
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			chain = append(chain, name)
		}
	}

	add(entry.Name)
	for _, fb := range entry.Fallbacks {
		add(fb)
	}
	add(c.DefaultLocale)

	return chain, nil
}

// LocaleNames returns every configured locale name.
func (c *Config) LocaleNames() []string {
	names := make([]string, 0, len(c.Locales))
	for _, l := range c.Locales {
		names = append(names, l.Name)
	}
	return names
}

// Group returns the content group called name.
func (c *Config) Group(name string) (*GroupConfig, bool) {
	for i := range c.Groups {
		if c.Groups[i].Name == name {
			return &c.Groups[i], true
		}
	}
	return nil, false
}

// GroupFor returns the group whose path is the longest prefix of the
// slash-separated resource path rel.
func (c *Config) GroupFor(rel string) (*GroupConfig, bool) {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")

	var best *GroupConfig
	for i := range c.Groups {
		g := &c.Groups[i]
		if !g.Contains(rel) {
			continue
		}
		if best == nil || len(g.Path) > len(best.Path) {
			best = g
		}
	}
	return best, best != nil
}

// Contains reports whether the resource path rel belongs to the group.
func (g *GroupConfig) Contains(rel string) bool {
	if g.Path == "" {
		return true
	}
	return rel == g.Path || strings.HasPrefix(rel, g.Path+"/")
}

// DictionaryPath returns the dictionary location for locale.
func (g *GroupConfig) DictionaryPath(locale string) string {
	return strings.ReplaceAll(g.Dictionary, LocalePlaceholder, locale)
}

// Category returns the first directory segment of rel below the group path,
// or "" for resources directly in the group directory.
func (g *GroupConfig) Category(rel string) string {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	if g.Path != "" {
		rel = strings.TrimPrefix(strings.TrimPrefix(rel, g.Path), "/")
	}
	dir, _, found := strings.Cut(rel, "/")
	if !found {
		return ""
	}
	return dir
}

// HasLocale reports whether locale is one of the group's locales.
func (g *GroupConfig) HasLocale(locale string) bool {
	for _, l := range g.Locales {
		if l == locale {
			return true
		}
	}
	return false
}
