// Package fileutil provides the filesystem primitives behind the
// connection cache: durable atomic writes, directory setup, and
// quarantine of files that fail to parse.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrEmptyPath indicates an empty file path was provided.
var ErrEmptyPath = errors.New("path is empty")

// EnsureDir creates the parent directory of path with the given
// permissions. Existing directories are left untouched.
func EnsureDir(path string, perm os.FileMode) error {
	if path == "" {
		return ErrEmptyPath
	}
	if err := os.MkdirAll(filepath.Dir(path), perm); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return nil
}

// WriteAtomic replaces the file at path with data in a single step.
// Readers never observe a partially written file: data lands in a
// sibling temp file that is fsynced before being renamed into place.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return ErrEmptyPath
	}

	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := writeAndClose(tmp, data, perm); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	syncDir(dir)
	return nil
}

// Quarantine moves the file at path aside under a timestamped
// ".corrupt" suffix and reports where it went. Callers use it to get
// an unreadable cache out of the way without destroying the evidence.
func Quarantine(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	dest := fmt.Sprintf("%s.corrupt.%d", path, time.Now().UTC().UnixNano())
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("quarantining file: %w", err)
	}
	return dest, nil
}

func writeAndClose(f *os.File, data []byte, perm os.FileMode) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Chmod(perm); err != nil {
		_ = f.Close()
		return fmt.Errorf("setting temp file permissions: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	return nil
}

// syncDir flushes the directory entry after a rename. Failures are
// ignored: the rename itself already succeeded.
func syncDir(dir string) {
	d, err := os.Open(dir) //nolint:gosec // G304: dir is derived from a validated path
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
