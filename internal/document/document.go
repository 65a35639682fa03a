// Package document holds the in-memory content tree shared by every stage
// of the pipeline together with the provenance needed to invalidate it.
package document

import (
	"bytes"
	"io"
	"os"
	"sync"
	"time"

	"github.com/beevik/etree"

	cerrors "github.com/conneroisu/glossa/internal/errors"
)

// Document is a parsed content tree loaded from Location. Once constructed
// it is treated as immutable: stages that change content build a new tree
// and a new Document.
type Document struct {
	Location string

	tree *etree.Document
	deps []string

	lastModOnce sync.Once
	lastMod     time.Time
}

// New wraps an existing tree. deps lists the files that contributed to it.
func New(location string, tree *etree.Document, deps []string) *Document {
	d := &Document{
		Location: location,
		tree:     tree,
		deps:     make([]string, len(deps)),
	}
	copy(d.deps, deps)
	return d
}

// Parse reads data as XML.
func Parse(location string, data []byte, deps []string) (*Document, error) {
	tree := etree.NewDocument()
	tree.ReadSettings.Permissive = false
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, cerrors.NewIOError(cerrors.ErrCodeParseFailed, "malformed XML", err).WithLocation(location)
	}
	if tree.Root() == nil {
		return nil, cerrors.NewIOError(cerrors.ErrCodeParseFailed, "document has no root element", nil).WithLocation(location)
	}
	return New(location, tree, deps), nil
}

// Tree returns the underlying tree. Callers must not modify it; use Copy.
func (d *Document) Tree() *etree.Document {
	return d.tree
}

// Root returns the document element.
func (d *Document) Root() *etree.Element {
	return d.tree.Root()
}

// Copy returns a deep copy of the tree for stages that produce new content.
func (d *Document) Copy() *etree.Document {
	return d.tree.Copy()
}

// Dependencies returns the files that contributed to the document.
func (d *Document) Dependencies() []string {
	out := make([]string, len(d.deps))
	copy(out, d.deps)
	return out
}

// LastModified is the latest modification time across Dependencies. It is
// computed on first call and never recomputed for this instance.
func (d *Document) LastModified() time.Time {
	d.lastModOnce.Do(func() {
		d.lastMod = LatestModTime(d.deps)
	})
	return d.lastMod
}

// WriteTo serializes the document.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	return d.tree.WriteTo(w)
}

// Bytes serializes the document into memory.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.tree.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ModTime returns the modification time of path. A missing file reports
// the current time: a dependency that disappeared counts as changed.
func ModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Now()
	}
	return info.ModTime()
}

// LatestModTime returns the maximum ModTime over paths, or the zero time
// for an empty list.
func LatestModTime(paths []string) time.Time {
	var latest time.Time
	for _, p := range paths {
		if mt := ModTime(p); mt.After(latest) {
			latest = mt
		}
	}
	return latest
}
