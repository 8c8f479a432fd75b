package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps one JSON file per session under baseDir.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a FileStore rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

// BaseDir returns the store's root directory.
func (f *FileStore) BaseDir() string {
	return f.baseDir
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.baseDir, id+".json")
}

// Get reads a session.
func (f *FileStore) Get(_ context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return decode(data, f.path(id))
}

// Save writes a session atomically.
func (f *FileStore) Save(_ context.Context, s *Session) error {
	if err := ValidateID(s.ID); err != nil {
		return err
	}
	touch(s)
	data, err := encode(s)
	if err != nil {
		return err
	}
	return writeAtomic(f.path(s.ID), data)
}

// Delete removes a session. Deleting an unknown id is not an error.
func (f *FileStore) Delete(_ context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := os.Remove(f.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// List returns every session, most recently updated first.
func (f *FileStore) List(ctx context.Context) ([]*Session, error) {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", f.baseDir, err)
	}

	var out []*Session
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		s, err := f.Get(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue // skip corrupt or foreign files
		}
		out = append(out, s)
	}
	sortByUpdated(out)
	return out, nil
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }

func sortByUpdated(ss []*Session) {
	sort.SliceStable(ss, func(i, j int) bool { return ss[i].UpdatedAt.After(ss[j].UpdatedAt) })
}
