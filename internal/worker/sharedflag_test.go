package worker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptekbits/GeoDash/internal/logging"
)

func TestSharedFlag_InitializeAndDetach(t *testing.T) {
	dir := t.TempDir()

	sf, err := openFlag(dir, "test-flag-a")
	require.NoError(t, err)

	init, err := sf.Initialized()
	require.NoError(t, err)
	assert.False(t, init)

	require.NoError(t, sf.MarkInitialized())
	init, err = sf.Initialized()
	require.NoError(t, err)
	assert.True(t, init)

	require.NoError(t, detachFlag("test-flag-a"))
}

func TestSharedFlag_RefCountedAcrossMultipleOpens(t *testing.T) {
	dir := t.TempDir()

	sf1, err := openFlag(dir, "test-flag-b")
	require.NoError(t, err)
	sf2, err := openFlag(dir, "test-flag-b")
	require.NoError(t, err)
	assert.Same(t, sf1, sf2)

	require.NoError(t, sf1.MarkInitialized())

	require.NoError(t, detachFlag("test-flag-b"))
	// One detach shouldn't unmap while sf2's reference is still live; the
	// file must still be readable by a fresh attach.
	require.NoError(t, detachFlag("test-flag-b"))

	sf3, err := openFlag(dir, "test-flag-b")
	require.NoError(t, err)
	init, err := sf3.Initialized()
	require.NoError(t, err)
	assert.True(t, init)
	require.NoError(t, detachFlag("test-flag-b"))
}

func TestUnlinkFlag_RemovesBackingFile(t *testing.T) {
	dir := t.TempDir()
	sf, err := openFlag(dir, "test-flag-c")
	require.NoError(t, err)
	require.NoError(t, detachFlag("test-flag-c"))

	require.NoError(t, unlinkFlag(dir, "test-flag-c"))
	_, err = os.Stat(sf.path)
	assert.True(t, os.IsNotExist(err))
}

func TestSweepStale_UnlinksOldRegionsOnly(t *testing.T) {
	dir := t.TempDir()

	oldPath := filepath.Join(dir, flagPrefix+"old")
	require.NoError(t, os.WriteFile(oldPath, []byte{0}, 0o644))
	oldTime := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, oldTime, oldTime))

	freshPath := filepath.Join(dir, flagPrefix+"fresh")
	require.NoError(t, os.WriteFile(freshPath, []byte{0}, 0o644))

	require.NoError(t, SweepStale(dir, logging.Nop()))

	_, err := os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshPath)
	assert.NoError(t, err)
}

func TestSweepStale_MissingDirectoryIsNotAnError(t *testing.T) {
	err := SweepStale(filepath.Join(t.TempDir(), "does-not-exist"), logging.Nop())
	assert.NoError(t, err)
}
