package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) <-chan struct{} {
	t.Helper()
	changes := make(chan struct{}, 16)
	w, err := New(root, func() { changes <- struct{}{} }, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return changes
}

func waitForChange(t *testing.T, changes <-chan struct{}) {
	t.Helper()
	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcherReportsWrites(t *testing.T) {
	root := t.TempDir()
	changes := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "file"), []byte("one"), 0644))
	waitForChange(t, changes)
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	changes := startWatcher(t, root)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	waitForChange(t, changes)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "file"), []byte("two"), 0644))
	waitForChange(t, changes)
}

func TestWatcherIgnoresDotEntries(t *testing.T) {
	root := t.TempDir()
	changes := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".swap"), []byte("x"), 0644))

	select {
	case <-changes:
		t.Fatal("change reported for ignored entry")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherDebounces(t *testing.T) {
	root := t.TempDir()
	changes := make(chan struct{}, 16)
	w, err := New(root, func() { changes <- struct{}{} }, WithDebounce(200*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, "file"), []byte{byte(i)}, 0644))
	}
	waitForChange(t, changes)

	select {
	case <-changes:
		t.Fatal("burst reported more than once")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), func() {})
	require.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestNewFailsOnMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), func() {})
	assert.Error(t, err)
}
