package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, path string, debounce time.Duration) *Watcher {
	t.Helper()
	w := New(path, debounce)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	return w
}

func waitChange(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case <-w.Changes():
	case <-time.After(3 * time.Second):
		t.Fatal("no change signaled")
	}
}

func TestWatcher_SignalsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_songs.conf")
	require.NoError(t, os.WriteFile(path, []byte("# x\n"), 0o600))
	w := startWatcher(t, path, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("https://open.spotify.com/track/a\n"), 0o600))
	waitChange(t, w)
}

func TestWatcher_SignalsOnRenameOver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocked_songs.conf")
	require.NoError(t, os.WriteFile(path, []byte("# x\n"), 0o600))
	w := startWatcher(t, path, 20*time.Millisecond)

	tmp := filepath.Join(dir, ".blocked_songs.conf.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("https://open.spotify.com/track/b\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))
	waitChange(t, w)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocked_songs.conf")
	require.NoError(t, os.WriteFile(path, []byte("# x\n"), 0o600))
	w := startWatcher(t, path, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("a: b\n"), 0o600))

	select {
	case <-w.Changes():
		t.Fatal("unexpected change signal")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_CoalescesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_songs.conf")
	require.NoError(t, os.WriteFile(path, []byte("# x\n"), 0o600))
	w := startWatcher(t, path, 150*time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("# burst\n"), 0o600))
	}
	waitChange(t, w)

	select {
	case <-w.Changes():
		t.Fatal("burst produced more than one signal")
	case <-time.After(200 * time.Millisecond):
	}
}
