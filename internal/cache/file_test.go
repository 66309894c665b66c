package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noccbuild/walletlink/internal/chain"
)

// TestFileStorage_SaveLoad tests round-tripping the cache through disk.
func TestFileStorage_SaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "connections.json")
	storage := NewFileStorage(path)

	c := NewConnectionCache()
	c.Set(ConnectionEntry{
		Family:    chain.Stacks,
		Address:   "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7",
		PublicKey: "02abc",
	})
	c.Set(ConnectionEntry{
		Family:  chain.Rootstock,
		Address: "0xAbC123",
		ChainID: "30",
	})
	require.NoError(t, storage.Save(c))
	assert.True(t, storage.Exists())

	loaded, err := storage.Load()
	require.NoError(t, err)

	entry, exists, _ := loaded.Get(chain.Stacks)
	require.True(t, exists)
	assert.Equal(t, "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7", entry.Address)

	entry, exists, _ = loaded.Get(chain.Rootstock)
	require.True(t, exists)
	assert.Equal(t, "30", entry.ChainID)
}

// TestFileStorage_LoadMissing tests loading when no file exists.
func TestFileStorage_LoadMissing(t *testing.T) {
	t.Parallel()

	storage := NewFileStorage(filepath.Join(t.TempDir(), "connections.json"))
	assert.False(t, storage.Exists())

	c, err := storage.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, c.Size())
}

// TestFileStorage_CorruptQuarantine tests that a malformed cache file is
// moved aside rather than left in place.
func TestFileStorage_CorruptQuarantine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "connections.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o640))

	storage := NewFileStorage(path)
	c, err := storage.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptCache)
	require.NotNil(t, c)
	assert.Equal(t, 0, c.Size())

	// Original file was moved to a .corrupt sibling.
	assert.False(t, storage.Exists())
	matches, globErr := filepath.Glob(path + ".corrupt.*")
	require.NoError(t, globErr)
	assert.Len(t, matches, 1)
}

// TestFileStorage_Delete tests cache file removal.
func TestFileStorage_Delete(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "connections.json")
	storage := NewFileStorage(path)

	// Deleting a missing file is fine.
	require.NoError(t, storage.Delete())

	require.NoError(t, storage.Save(NewConnectionCache()))
	require.True(t, storage.Exists())
	require.NoError(t, storage.Delete())
	assert.False(t, storage.Exists())
}

// TestFileStorage_LoadHonorsOptions tests that Load applies cache options
// to the result.
func TestFileStorage_LoadHonorsOptions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "connections.json")
	storage := NewFileStorage(path)
	require.NoError(t, storage.Save(NewConnectionCache()))

	c, err := storage.Load(WithTTL(42 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 42*time.Minute, c.TTL())
}
