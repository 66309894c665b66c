package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWriteAtomicReplacesContent verifies that an atomic write replaces
// the previous file content and applies the requested permissions.
func TestWriteAtomicReplacesContent(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644)) //nolint:gosec // G306: Test file, relaxed perms OK
	require.NoError(t, WriteAtomic(target, []byte("new"), 0o600))

	data, err := os.ReadFile(target) //nolint:gosec // G304: Test path from t.TempDir()
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// TestWriteAtomicFailureLeavesOriginalFile verifies that a failed write
// never clobbers the existing file.
func TestWriteAtomicFailureLeavesOriginalFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0o644)) //nolint:gosec // G306: Test file, relaxed perms OK

	require.NoError(t, os.Chmod(dir, 0o500)) //nolint:gosec // G302: Test uses intentionally restrictive perms
	defer func() {
		_ = os.Chmod(dir, 0o700) //nolint:gosec // G302: Restoring perms in test cleanup
	}()

	err := WriteAtomic(target, []byte("replacement"), 0o600)
	require.Error(t, err)

	data, readErr := os.ReadFile(target) //nolint:gosec // G304: Test path from t.TempDir()
	require.NoError(t, readErr)
	assert.Equal(t, "original", string(data))
}

// TestWriteAtomicEmptyPath verifies the empty-path guard.
func TestWriteAtomicEmptyPath(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, WriteAtomic("", []byte("data"), 0o600), ErrEmptyPath)
}

// TestEnsureDirCreatesParents verifies that the parent directory chain
// is created for a nested cache path.
func TestEnsureDirCreatesParents(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "walletlink", "cache", "connections.json")
	require.NoError(t, EnsureDir(target, 0o750))

	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

// TestQuarantineMovesFileAside verifies that a quarantined file keeps
// its content under a ".corrupt" suffixed name.
func TestQuarantineMovesFileAside(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "connections.json")
	require.NoError(t, os.WriteFile(target, []byte("{broken"), 0o600))

	dest, err := Quarantine(target)
	require.NoError(t, err)
	assert.Contains(t, dest, ".corrupt.")
	assert.True(t, strings.HasPrefix(filepath.Base(dest), "connections.json"))

	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(dest) //nolint:gosec // G304: Test path from t.TempDir()
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(data))
}

// TestQuarantineMissingFile verifies that quarantining a missing file
// reports an error instead of succeeding silently.
func TestQuarantineMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Quarantine(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
