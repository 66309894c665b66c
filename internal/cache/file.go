package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/noccbuild/walletlink/internal/fileutil"
)

const (
	// cacheFilePermissions is the permission mode for cache files.
	cacheFilePermissions = 0o640

	// cacheDirPermissions is the permission mode for cache directories.
	cacheDirPermissions = 0o750
)

// ErrCorruptCache indicates the cache file is malformed JSON.
var ErrCorruptCache = errors.New("cache file is corrupted")

// FileStorage persists the connection cache on the filesystem so a new
// CLI invocation can resume the previous session.
type FileStorage struct {
	path string
}

// NewFileStorage creates a new file-based cache storage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Save writes the cache to the filesystem.
func (s *FileStorage) Save(c *ConnectionCache) error {
	if err := fileutil.EnsureDir(s.path, cacheDirPermissions); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	if err := fileutil.WriteAtomic(s.path, data, cacheFilePermissions); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}

// Load reads the cache from the filesystem.
// Returns an empty cache if the file doesn't exist. A malformed file is
// quarantined so the next run starts clean.
func (s *FileStorage) Load(opts ...Option) (*ConnectionCache, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return NewConnectionCache(opts...), nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	c := NewConnectionCache(opts...)
	if err := json.Unmarshal(data, c); err != nil {
		corruptPath, moveErr := fileutil.Quarantine(s.path)
		if moveErr != nil {
			return NewConnectionCache(opts...), fmt.Errorf("%w: %w (also failed to move file: %w)", ErrCorruptCache, err, moveErr)
		}
		return NewConnectionCache(opts...), fmt.Errorf("%w: %w (moved to %s)", ErrCorruptCache, err, corruptPath)
	}

	if c.Entries == nil {
		c.Entries = make(map[string]ConnectionEntry)
	}

	return c, nil
}

// Delete removes the cache file.
func (s *FileStorage) Delete() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil // Already doesn't exist
	}

	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("removing cache file: %w", err)
	}

	return nil
}

// Exists checks if the cache file exists.
func (s *FileStorage) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Path returns the cache file path.
func (s *FileStorage) Path() string {
	return s.path
}
