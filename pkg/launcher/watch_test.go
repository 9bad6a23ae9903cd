package launcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStateWatcherSignalsOnWrite(t *testing.T) {
	store := newTestStore(t)
	sw, err := newStateWatcher(store.Path())
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	defer sw.Close()

	// unrelated files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(store.Path()), "other.txt"), []byte("x"), 0o644))
	select {
	case <-sw.Changed():
		t.Fatal("unexpected notification for unrelated file")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, store.Write(stateFor("http://127.0.0.1:1", 1)))
	select {
	case <-sw.Changed():
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after state write")
	}

	require.NoError(t, sw.Close())
	require.NoError(t, sw.Close())
}
