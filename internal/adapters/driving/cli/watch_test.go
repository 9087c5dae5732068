package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDebounce = 30 * time.Millisecond
	waitFor      = 3 * time.Second
	tick         = 10 * time.Millisecond
)

func startWatcher(t *testing.T, dir string, idx *mockIndexing) {
	t.Helper()
	w, err := newPDFWatcher(dir, testDebounce, idx)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestPDFWatcher_IndexesNewFile(t *testing.T) {
	dir := t.TempDir()
	idx := &mockIndexing{}
	startWatcher(t, dir, idx)

	writeFile(t, filepath.Join(dir, "A-201.pdf"))
	writeFile(t, filepath.Join(dir, "readme.txt"))

	assert.Eventually(t, func() bool { return len(idx.indexedIDs()) == 1 }, waitFor, tick)
	assert.Equal(t, []string{"A-201"}, idx.indexedIDs())
}

func TestPDFWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A-201.pdf")
	writeFile(t, path)
	idx := &mockIndexing{}
	startWatcher(t, dir, idx)

	for i := 0; i < 5; i++ {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
		require.NoError(t, err)
		_, err = f.WriteString("more")
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	assert.Eventually(t, func() bool { return len(idx.indexedIDs()) >= 1 }, waitFor, tick)
	assert.Never(t, func() bool { return len(idx.indexedIDs()) > 1 }, 10*testDebounce, tick)
}

func TestPDFWatcher_DeletesRemovedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A-201.pdf")
	writeFile(t, path)
	idx := &mockIndexing{}
	startWatcher(t, dir, idx)

	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool { return len(idx.deletedIDs()) == 1 }, waitFor, tick)
	assert.Equal(t, []string{"A-201"}, idx.deletedIDs())
}

func TestPDFWatcher_FollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	idx := &mockIndexing{}
	startWatcher(t, dir, idx)

	sub := filepath.Join(dir, "structural")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher time to register the new directory.
	time.Sleep(5 * testDebounce)
	writeFile(t, filepath.Join(sub, "S-101.pdf"))

	assert.Eventually(t, func() bool {
		ids := idx.indexedIDs()
		return len(ids) > 0 && ids[len(ids)-1] == "structural/S-101"
	}, waitFor, tick)
}

func TestWatchCmd_InitialScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "A-101.pdf"))
	s := newTestServices()
	defer s.install()()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	rootCmd.SetArgs([]string{"watch", "--debounce", "10ms", dir})
	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	assert.Eventually(t, func() bool { return len(s.indexing.indexedIDs()) == 1 }, waitFor, tick)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"A-101"}, s.indexing.indexedIDs())
}
