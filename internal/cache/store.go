package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const fileExtension = ".json"

// DefaultTTL keeps extraction responses for a week.
const DefaultTTL = 7 * 24 * time.Hour

// Cache errors.
var (
	ErrNotFound   = errors.New("cache entry not found")
	ErrExpired    = errors.New("cache entry expired")
	ErrInvalidKey = errors.New("cache key cannot be empty")
)

// Stats summarises the files in a store.
type Stats struct {
	Entries int   `json:"entries"`
	Expired int   `json:"expired"`
	Bytes   int64 `json:"bytes"`
}

// FileStore keeps entries as JSON files in one directory. It is safe for
// concurrent use within a process.
type FileStore struct {
	dir string
	ttl time.Duration
	mu  sync.RWMutex
}

// NewFileStore opens dir, creating it if needed. Entries written through the
// store expire after ttl; zero means never.
func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cache directory cannot be empty")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("cache ttl must not be negative, got %s", ttl)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &FileStore{dir: dir, ttl: ttl}, nil
}

// Dir returns the cache directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Get returns the entry for key, ErrNotFound when there is none, or
// ErrExpired when it has expired. Expired entries are removed.
func (s *FileStore) Get(key string) (*Entry, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	s.mu.RLock()
	entry, err := s.read(s.path(key))
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if entry.IsExpired() {
		_ = s.Delete(key)
		return nil, ErrExpired
	}
	return entry, nil
}

// Set writes data under key, replacing any previous entry.
func (s *FileStore) Set(key string, data []byte) error {
	if key == "" {
		return ErrInvalidKey
	}

	encoded, err := json.MarshalIndent(NewEntry(key, data, s.ttl), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key)
	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, encoded, 0o600); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for key. Deleting a missing entry is not an error.
func (s *FileStore) Delete(key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry and returns how many were removed.
func (s *FileStore) Clear() (int, error) {
	return s.remove(func(*Entry) bool { return true })
}

// Prune removes expired and unreadable entries and returns how many were
// removed.
func (s *FileStore) Prune() (int, error) {
	return s.remove(func(e *Entry) bool { return e == nil || e.IsExpired() })
}

// Stats counts the entries in the store.
func (s *FileStore) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	files, err := s.files()
	if err != nil {
		return st, err
	}
	for _, f := range files {
		info, statErr := os.Stat(f)
		if statErr != nil {
			continue
		}
		st.Entries++
		st.Bytes += info.Size()
		if e, readErr := s.read(f); readErr == nil && e.IsExpired() {
			st.Expired++
		}
	}
	return st, nil
}

// remove deletes every entry file for which match returns true. Unreadable
// files are passed to match as nil.
func (s *FileStore) remove(match func(*Entry) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.files()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, f := range files {
		e, readErr := s.read(f)
		if readErr != nil {
			e = nil
		}
		if !match(e) {
			continue
		}
		if rmErr := os.Remove(f); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return removed, fmt.Errorf("removing %s: %w", filepath.Base(f), rmErr)
		}
		removed++
	}
	return removed, nil
}

func (s *FileStore) files() ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}
	var files []string
	for _, d := range dirEntries {
		if d.IsDir() || filepath.Ext(d.Name()) != fileExtension {
			continue
		}
		files = append(files, filepath.Join(s.dir, d.Name()))
	}
	return files, nil
}

func (s *FileStore) read(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	var e Entry
	if err = json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding cache entry %s: %w", filepath.Base(path), err)
	}
	return &e, nil
}

// path maps a key to its file. Keys are normally hex digests; anything that
// could escape the directory is replaced.
func (s *FileStore) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, safe+fileExtension)
}
