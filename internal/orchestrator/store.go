package orchestrator

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/conneroisu/glossa/internal/document"
	cerrors "github.com/conneroisu/glossa/internal/errors"
	"github.com/conneroisu/glossa/internal/translate"
)

// ManifestSuffix is appended to an output path to name its manifest.
const ManifestSuffix = ".deps.json"

// Manifest records how a generated output was produced. An output without
// a readable manifest counts as never generated.
type Manifest struct {
	Resource     string    `json:"resource"`
	Locale       string    `json:"locale"`
	Mode         string    `json:"mode"`
	Source       string    `json:"source"`
	Generated    time.Time `json:"generated"`
	Fingerprint  string    `json:"fingerprint"`
	Dependencies []string  `json:"dependencies"`
	Candidates   []string  `json:"candidates,omitempty"`
}

// Store persists generated outputs below a root directory.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir, locks: make(map[string]*sync.Mutex)}
}

// Root returns the output directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns where the output of name for locale is written. Diagnose
// outputs get a ".diag" marker before the extension.
func (s *Store) Path(name document.ResourceName, locale string, mode translate.Mode) string {
	out := name.WithLocale(locale)
	if mode == translate.Diagnose {
		out = out.WithExt(".diag" + name.Ext)
	}
	return filepath.Join(s.root, filepath.FromSlash(out.Path()))
}

// lock serializes generation of one output path.
func (s *Store) lock(path string) func() {
	s.mu.Lock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Manifest reads the manifest of output. It fails when either the manifest
// or the output itself is missing.
func (s *Store) Manifest(output string) (*Manifest, error) {
	if _, err := os.Stat(output); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(output + ManifestSuffix)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, cerrors.NewIOError(cerrors.ErrCodeParseFailed, "malformed manifest", err).WithLocation(output + ManifestSuffix)
	}
	return &m, nil
}

// Load reads a previously generated output with the dependencies its
// manifest records.
func (s *Store) Load(output string, m *Manifest) (*document.Document, string, error) {
	data, err := os.ReadFile(output)
	if err != nil {
		return nil, "", cerrors.NewIOError(cerrors.ErrCodeFileNotFound, "cannot read output", err).WithLocation(output)
	}
	doc, err := document.Parse(output, data, m.Dependencies)
	if err != nil {
		return nil, "", err
	}
	sum := blake3.Sum256(data)
	return doc, hex.EncodeToString(sum[:]), nil
}

// Write replaces output with whatever write produces and then records m
// as its manifest, filling in the fingerprint. The old manifest is removed
// first, and on any failure both files are removed, so a partial output is
// never mistaken for a generated one.
func (s *Store) Write(output string, m *Manifest, write func(io.Writer) error) (err error) {
	manifest := output + ManifestSuffix
	if err := removeIfExists(manifest); err != nil {
		return cerrors.NewIOError(cerrors.ErrCodeWriteFailed, "cannot remove stale manifest", err).WithLocation(manifest)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return cerrors.NewIOError(cerrors.ErrCodeWriteFailed, "cannot create output directory", err).WithLocation(output)
	}

	f, err := os.Create(output)
	if err != nil {
		return cerrors.NewIOError(cerrors.ErrCodeWriteFailed, "cannot create output", err).WithLocation(output)
	}
	defer func() {
		if err != nil {
			_ = removeIfExists(output)
			_ = removeIfExists(manifest)
		}
	}()

	hasher := blake3.New()
	w := bufio.NewWriter(io.MultiWriter(f, hasher))
	if err = write(w); err != nil {
		f.Close()
		return err
	}
	if err = w.Flush(); err != nil {
		f.Close()
		return cerrors.NewIOError(cerrors.ErrCodeWriteFailed, "cannot write output", err).WithLocation(output)
	}
	if err = f.Close(); err != nil {
		return cerrors.NewIOError(cerrors.ErrCodeWriteFailed, "cannot close output", err).WithLocation(output)
	}

	m.Fingerprint = hex.EncodeToString(hasher.Sum(nil))
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return cerrors.NewInternalError(cerrors.ErrCodeInternalError, "cannot encode manifest", err)
	}
	if err = os.WriteFile(manifest, data, 0o644); err != nil {
		return cerrors.NewIOError(cerrors.ErrCodeWriteFailed, "cannot write manifest", err).WithLocation(manifest)
	}
	return nil
}

// Remove deletes output and its manifest.
func (s *Store) Remove(output string) error {
	if err := removeIfExists(output); err != nil {
		return err
	}
	return removeIfExists(output + ManifestSuffix)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
