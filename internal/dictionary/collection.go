package dictionary

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/conneroisu/glossa/internal/deps"
	"github.com/conneroisu/glossa/internal/document"
	cerrors "github.com/conneroisu/glossa/internal/errors"
	"github.com/conneroisu/glossa/internal/logging"
)

// Collection holds the merged dictionaries of one content group, one per
// group locale. It is rebuilt wholesale, never updated in place.
type Collection struct {
	Group string

	locales []string
	files   map[string]*File
	errs    map[string]error
	built   time.Time
}

// File returns the dictionary for locale. A locale whose merge failed
// returns that failure.
func (c *Collection) File(locale string) (*File, bool, error) {
	if err, ok := c.errs[locale]; ok {
		return nil, true, err
	}
	f, ok := c.files[locale]
	return f, ok, nil
}

// Locales returns the group locales in configuration order.
func (c *Collection) Locales() []string {
	return append([]string(nil), c.locales...)
}

// Built returns when the collection was merged.
func (c *Collection) Built() time.Time {
	return c.built
}

// Dependencies returns the files of every dictionary in the collection.
func (c *Collection) Dependencies() []string {
	tracker := deps.New()
	for _, l := range c.locales {
		if f, ok := c.files[l]; ok {
			tracker.Add(f.Dependencies()...)
		}
	}
	return tracker.All()
}

// LastModified is the latest modification time over every dictionary.
func (c *Collection) LastModified() time.Time {
	var latest time.Time
	for _, f := range c.files {
		if mt := f.LastModified(); mt.After(latest) {
			latest = mt
		}
	}
	return latest
}

// Stale reports whether any dictionary changed on disk after the
// collection was built.
func (c *Collection) Stale() bool {
	return document.LatestModTime(c.Dependencies()).After(c.built)
}

// Cache shares dictionary collections across concurrent resolutions.
// Collections are built on first use and replaced by Refresh.
type Cache struct {
	mu     sync.Mutex
	merger *Merger
	groups map[string]*Collection
	logger logging.Logger
}

// NewCache creates an empty cache over merger.
func NewCache(merger *Merger, logger logging.Logger) *Cache {
	return &Cache{
		merger: merger,
		groups: make(map[string]*Collection),
		logger: logging.OrDiscard(logger).WithComponent("dictionary"),
	}
}

// Merger returns the merger collections are built with.
func (c *Cache) Merger() *Merger {
	return c.merger
}

// Collection returns the collection for group, building it on first use.
func (c *Cache) Collection(ctx context.Context, group string) (*Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if coll, ok := c.groups[group]; ok {
		return coll, nil
	}
	return c.build(ctx, group)
}

// Refresh rebuilds the collection for group.
func (c *Cache) Refresh(ctx context.Context, group string) (*Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info(ctx, "Refreshing dictionaries", "group", group)
	return c.build(ctx, group)
}

// Invalidate drops the collection for group.
func (c *Cache) Invalidate(group string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.groups, group)
}

// Dictionary returns the merged dictionary for group and locale. Locales
// outside the group's list are merged directly and not cached.
func (c *Cache) Dictionary(ctx context.Context, group, locale string) (*File, error) {
	coll, err := c.Collection(ctx, group)
	if err != nil {
		return nil, err
	}
	f, ok, err := coll.File(locale)
	if err != nil {
		return nil, err
	}
	if ok {
		return f, nil
	}
	return c.merger.Merge(ctx, group, locale)
}

func (c *Cache) build(ctx context.Context, group string) (*Collection, error) {
	g, ok := c.merger.config.Group(group)
	if !ok {
		return nil, cerrors.NewConfigError(cerrors.ErrCodeUnknownGroup, fmt.Sprintf("unknown content group %q", group))
	}
	locales := g.Locales
	if len(locales) == 0 {
		locales = c.merger.config.LocaleNames()
	}

	coll := &Collection{
		Group:   group,
		locales: append([]string(nil), locales...),
		files:   make(map[string]*File, len(locales)),
		errs:    make(map[string]error),
		built:   time.Now(),
	}
	for _, l := range locales {
		f, err := c.merger.Merge(ctx, group, l)
		if err != nil {
			c.logger.Warn(ctx, err, "Dictionary merge failed", "group", group, "locale", l)
			coll.errs[l] = err
			continue
		}
		coll.files[l] = f
	}

	c.groups[group] = coll
	return coll, nil
}
