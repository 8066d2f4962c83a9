package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a Storage backed by a single JSON object on disk. The file is
// read once at construction; every Set rewrites the whole object back via
// a temp-file-plus-rename so a crash mid-write never corrupts the
// previous contents, and so a newly resolved identifier survives a crash
// between Set and the next graceful shutdown.
type File struct {
	path string

	mu   sync.Mutex
	data map[string]string
}

// NewFile opens (or creates) the JSON store at path. A missing file is
// treated as an empty store rather than an error.
func NewFile(path string) (*File, error) {
	f := &File{path: path, data: map[string]string{}}

	// #nosec G304 -- path is supplied by the embedding application, not untrusted input
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("storage: reading %s: %w", path, err)
	}
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f.data); err != nil {
		return nil, fmt.Errorf("storage: parsing %s: %w", path, err)
	}
	return f, nil
}

func (f *File) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

// Set writes key/value into memory and rewrites the backing file
// immediately, so the value is durable before Set returns.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return f.persistLocked()
}

// Flush rewrites the backing file from the current in-memory state. With
// Set already writing through on every call, Flush is a redundant final
// safeguard rather than the primary persistence path.
func (f *File) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.persistLocked()
}

// persistLocked writes f.data to f.path via a temp-file-plus-rename. f.mu
// must be held.
func (f *File) persistLocked() error {
	raw, err := json.Marshal(f.data)
	if err != nil {
		return fmt.Errorf("storage: marshaling state: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".detsys-ids-store-*.tmp")
	if err != nil {
		return fmt.Errorf("storage: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("storage: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: renaming temp file into place: %w", err)
	}

	return nil
}
