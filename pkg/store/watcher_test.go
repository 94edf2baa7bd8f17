package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherSignalsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.db")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	wake, unsubscribe := w.Subscribe()
	defer unsubscribe()

	require.NoError(t, os.WriteFile(path+"-wal", []byte("y"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("z"), 0o600))

	select {
	case <-wake:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a wake signal after the WAL changed")
	}
}

func TestWatcherStopAfterFailedStart(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing", "chat.db"))
	require.NoError(t, err)
	require.Error(t, w.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked after Start failed")
	}
}
