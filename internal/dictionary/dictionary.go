// Package dictionary loads per-locale phrase dictionaries and merges them
// along a locale's fallback chain.
package dictionary

import (
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/glossa/internal/deps"
	"github.com/conneroisu/glossa/internal/document"
)

// Phrase is a translated text together with the locale it came from.
type Phrase struct {
	ID     string
	Text   string
	Locale string
}

// File is one locale's fallback-resolved phrase table for a content group.
// A File is immutable once built.
type File struct {
	Group  string
	Locale string
	// Chain is the fallback chain the file was merged along.
	Chain []string
	// Sources lists the dictionary locations that contributed, in chain order.
	Sources []string

	phrases map[string]Phrase
	order   []string
	deps    []string

	lastModOnce sync.Once
	lastMod     time.Time
}

// Merge combines sources, given in priority order, into one File. The first
// source defining a phrase id wins; later sources only fill gaps.
func Merge(group, locale string, chain []string, sources []*Source) *File {
	f := &File{
		Group:   group,
		Locale:  locale,
		Chain:   append([]string(nil), chain...),
		phrases: make(map[string]Phrase),
	}
	tracker := deps.New()
	for _, src := range sources {
		f.Sources = append(f.Sources, src.Location)
		tracker.Add(src.Dependencies...)
		for _, e := range src.Entries {
			if _, ok := f.phrases[e.ID]; ok {
				continue
			}
			f.phrases[e.ID] = Phrase{ID: e.ID, Text: e.Text, Locale: src.Locale}
			f.order = append(f.order, e.ID)
		}
	}
	f.deps = tracker.All()
	return f
}

// Lookup returns the phrase with id.
func (f *File) Lookup(id string) (Phrase, bool) {
	p, ok := f.phrases[id]
	return p, ok
}

// Phrases returns every phrase in first-seen order.
func (f *File) Phrases() []Phrase {
	out := make([]Phrase, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.phrases[id])
	}
	return out
}

// Len returns the number of phrases.
func (f *File) Len() int {
	return len(f.order)
}

// Empty reports whether no dictionary existed anywhere in the chain.
func (f *File) Empty() bool {
	return len(f.Sources) == 0
}

// Dependencies returns the files of every contributing dictionary.
func (f *File) Dependencies() []string {
	out := make([]string, len(f.deps))
	copy(out, f.deps)
	return out
}

// LastModified is the latest modification time over Dependencies. It is
// computed on first use.
func (f *File) LastModified() time.Time {
	f.lastModOnce.Do(func() {
		f.lastMod = document.LatestModTime(f.deps)
	})
	return f.lastMod
}

// Untranslated returns the ids whose text came from a fallback locale
// rather than the file's own locale, sorted.
func (f *File) Untranslated() []string {
	var ids []string
	for id, p := range f.phrases {
		if p.Locale != f.Locale {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
