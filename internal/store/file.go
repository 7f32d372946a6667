package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// fileEntry is the on-disk shape of one key: {"data": ..., "expires_at": RFC 3339}.
// A missing expires_at never expires. The deadline keeps nanoseconds so the
// file layer expires at the same instant as the memory layer.
type fileEntry struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

func (e fileEntry) live(now time.Time) bool {
	return e.ExpiresAt == nil || !now.After(*e.ExpiresAt)
}

// FileBackend keeps every key in one JSON document. Each write reads the
// document, prunes expired entries, applies the change and replaces the file
// through a temp file and rename, all under a mutex.
type FileBackend struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileBackend returns a backend persisting to path. The parent directory is
// created when missing.
func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{path: path, now: time.Now}, nil
}

// Name implements Backend.
func (f *FileBackend) Name() string { return "file" }

// Path returns the document location.
func (f *FileBackend) Path() string { return f.path }

// Get implements Backend.
func (f *FileBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, false, err
	}
	e, ok := doc[key]
	if !ok || !e.live(f.now()) {
		return nil, false, nil
	}
	return []byte(e.Data), true, nil
}

// Set implements Backend.
func (f *FileBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !json.Valid(value) {
		return fmt.Errorf("store: value for %q is not JSON", key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc := f.loadForWrite()
	now := f.now()
	e := fileEntry{Data: json.RawMessage(value)}
	if exp := expiry(now, ttl); !exp.IsZero() {
		exp = exp.UTC()
		e.ExpiresAt = &exp
	}
	doc[key] = e
	return f.flush(doc, now)
}

// Delete implements Backend.
func (f *FileBackend) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc := f.loadForWrite()
	for _, k := range keys {
		delete(doc, k)
	}
	return f.flush(doc, f.now())
}

// Close implements Backend.
func (f *FileBackend) Close() error { return nil }

func (f *FileBackend) load() (map[string]fileEntry, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]fileEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	doc := map[string]fileEntry{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return doc, nil
}

// loadForWrite starts from an empty document when the current one cannot be
// read, so a damaged file does not block every later write.
func (f *FileBackend) loadForWrite() map[string]fileEntry {
	doc, err := f.load()
	if err != nil {
		return map[string]fileEntry{}
	}
	return doc
}

func (f *FileBackend) flush(doc map[string]fileEntry, now time.Time) error {
	for k, e := range doc {
		if !e.live(now) {
			delete(doc, k)
		}
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
