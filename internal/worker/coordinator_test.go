package worker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptekbits/GeoDash/internal/config"
	"github.com/cryptekbits/GeoDash/internal/logging"
)

func TestCoordinator_MarkerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := New(config.Defaults(), logging.Nop(), dir)

	_, err := c.ReadMarker()
	assert.Error(t, err)

	m := Marker{RecordCount: 42, Status: "ready"}
	b, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, markerFileName), b, 0o644))

	got, err := c.ReadMarker()
	require.NoError(t, err)
	assert.Equal(t, 42, got.RecordCount)
	assert.Equal(t, "ready", got.Status)
}

func TestCoordinator_MarkReadyAndUnlinkAll(t *testing.T) {
	dir := t.TempDir()
	c := New(config.Defaults(), logging.Nop(), dir)

	require.NoError(t, c.markReady(flagNameIndex))
	require.NoError(t, detachFlag(flagNameIndex))

	require.NoError(t, c.UnlinkAll())
}
