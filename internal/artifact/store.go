// Package artifact persists synthesized audio to a single well-known file.
//
// There is exactly one artifact: every synthesis overwrites it. Concurrent
// calls race on the file and the last writer wins; a reader may observe a
// file belonging to a different call. The retrieval endpoint serves files
// from the same directory.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nadzzz/callvoice/internal/config"
)

var (
	// ErrEmpty is reported when the artifact exists but holds zero bytes.
	ErrEmpty = errors.New("artifact is empty")

	// ErrNotFound is reported when the artifact does not exist.
	ErrNotFound = errors.New("artifact not found")
)

// StoreError describes a failed store operation.
type StoreError struct {
	Op   string // "mkdir", "write", "verify", "open"
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("artifact %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store writes and reads the audio artifact.
type Store struct {
	dir      string
	filename string
}

// New creates a store rooted at cfg.Dir. The directory is created lazily.
func New(cfg config.ArtifactConfig) *Store {
	return &Store{dir: cfg.Dir, filename: cfg.Filename}
}

// Filename returns the artifact's file name.
func (s *Store) Filename() string { return s.filename }

// Path returns the artifact's location on disk.
func (s *Store) Path() string { return filepath.Join(s.dir, s.filename) }

// URLPath returns the request path under which the artifact is served.
func (s *Store) URLPath() string { return "/audio/" + s.filename }

// Store overwrites the artifact with data, creating the directory if needed.
func (s *Store) Store(data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &StoreError{Op: "mkdir", Path: s.dir, Err: err}
	}
	path := s.Path()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &StoreError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Verify re-reads the artifact's size. A zero-byte artifact is a failure.
func (s *Store) Verify() (int64, error) {
	path := s.Path()
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrNotFound
		}
		return 0, &StoreError{Op: "verify", Path: path, Err: err}
	}
	if info.Size() == 0 {
		return 0, &StoreError{Op: "verify", Path: path, Err: ErrEmpty}
	}
	return info.Size(), nil
}

// Open opens a file from the artifact directory by bare name. Names that
// carry path elements are treated as missing.
func (s *Store) Open(name string) (*os.File, fs.FileInfo, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return nil, nil, &StoreError{Op: "open", Path: name, Err: ErrNotFound}
	}
	path := filepath.Join(s.dir, name)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrNotFound
		}
		return nil, nil, &StoreError{Op: "open", Path: path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, &StoreError{Op: "open", Path: path, Err: err}
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, &StoreError{Op: "open", Path: path, Err: ErrNotFound}
	}
	if info.Size() == 0 {
		f.Close()
		return nil, nil, &StoreError{Op: "open", Path: path, Err: ErrEmpty}
	}
	return f, info, nil
}

// CheckWritable verifies the artifact directory can be created and written.
func (s *Store) CheckWritable() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &StoreError{Op: "mkdir", Path: s.dir, Err: err}
	}
	f, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		return &StoreError{Op: "write", Path: s.dir, Err: err}
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
