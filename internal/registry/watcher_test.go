package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parkbanksia/tourney/internal/config"
	"github.com/stretchr/testify/require"
)

func TestWatcherDetectsBinaryChange(t *testing.T) {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "stockfish")
	require.NoError(t, os.WriteFile(binPath, []byte("v1"), 0o755))

	reg, err := New([]config.EngineEntry{{Name: "stockfish", Path: binPath}}, nil)
	require.NoError(t, err)

	w, err := NewWatcher(reg)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(binPath, []byte("v2"), 0o755))

	select {
	case change := <-w.Changes:
		require.Equal(t, "stockfish", change.EngineName)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}
