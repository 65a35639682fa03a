// Package deps tracks the physical inputs that contributed to a produced
// document so cached artifacts can be invalidated when any of them changes.
//
// There is no ambient tracker. Every resolution call threads its own
// Tracker and callers merge child trackers into their own explicitly.
package deps

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Tracker accumulates file dependencies in first-seen order without
// duplicates. A Tracker belongs to one top-level resolution and is not safe
// for concurrent use.
type Tracker struct {
	paths []string
	seen  map[string]struct{}
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

// Add records every entry that names a local file. Bare paths and file:
// URIs are tracked; any other scheme is ignored because it is not subject
// to local modification-time invalidation.
func (t *Tracker) Add(paths ...string) {
	for _, p := range paths {
		local, ok := FilePath(p)
		if !ok {
			continue
		}
		if _, dup := t.seen[local]; dup {
			continue
		}
		t.seen[local] = struct{}{}
		t.paths = append(t.paths, local)
	}
}

// Merge adds everything other has recorded.
func (t *Tracker) Merge(other *Tracker) {
	if other == nil {
		return
	}
	t.Add(other.paths...)
}

// All returns the de-duplicated dependency list.
func (t *Tracker) All() []string {
	out := make([]string, len(t.paths))
	copy(out, t.paths)
	return out
}

// Len returns the number of tracked files.
func (t *Tracker) Len() int {
	return len(t.paths)
}

// Contains reports whether path is tracked.
func (t *Tracker) Contains(path string) bool {
	local, ok := FilePath(path)
	if !ok {
		return false
	}
	_, found := t.seen[local]
	return found
}

// FilePath converts a dependency reference into a clean absolute file path.
// It reports false for references that are not local files.
func FilePath(ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	if strings.HasPrefix(ref, "file:") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", false
		}
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		if p == "" {
			return "", false
		}
		return absClean(filepath.FromSlash(p)), true
	}
	if Scheme(ref) != "" {
		return "", false
	}
	return absClean(ref), true
}

func absClean(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

// Scheme returns the lower-cased URI scheme of ref, or "" for plain paths.
// Single letters followed by a colon are Windows drive letters, not schemes.
func Scheme(ref string) string {
	i := strings.IndexByte(ref, ':')
	if i < 2 {
		return ""
	}
	for j := 0; j < i; j++ {
		c := ref[j]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case j > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return ""
		}
	}
	return strings.ToLower(ref[:i])
}
