package spec

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectCallback gathers callback invocations for assertions
type collectCallback struct {
	mu    sync.Mutex
	calls [][]string
}

func (c *collectCallback) record(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, paths)
}

func (c *collectCallback) snapshot() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func TestDirWatcherDeliversNewSpecs(t *testing.T) {
	dir := t.TempDir()
	loader := newTestLoader()

	w, err := NewDirWatcher(dir, loader, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	collector := &collectCallback{}
	w.OnNewSpecs(collector.record)
	w.Start()

	// Give the watch loop a moment to come up
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(dir, "new.sbatch")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/bash\necho hi\n"), 0o644))

	require.Eventually(t, func() bool {
		return len(collector.snapshot()) > 0
	}, 2*time.Second, 20*time.Millisecond)

	calls := collector.snapshot()
	assert.Contains(t, calls[0], path)
}

func TestDirWatcherIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	loader := newTestLoader()

	w, err := NewDirWatcher(dir, loader, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	collector := &collectCallback{}
	w.OnNewSpecs(collector.record)
	w.Start()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	// No callback should fire for an unaccepted extension
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, collector.snapshot())
}

func TestDirWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	loader := newTestLoader()

	w, err := NewDirWatcher(dir, loader, 150*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	collector := &collectCallback{}
	w.OnNewSpecs(collector.record)
	w.Start()

	time.Sleep(50 * time.Millisecond)

	// Burst of three files well inside the debounce window
	for _, name := range []string{"b.sbatch", "a.sbatch", "c.sbatch"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/bash\necho hi\n"), 0o644))
	}

	require.Eventually(t, func() bool {
		return len(collector.snapshot()) > 0
	}, 2*time.Second, 20*time.Millisecond)

	calls := collector.snapshot()
	require.Len(t, calls, 1, "burst should collapse into one callback")
	assert.Equal(t, []string{
		filepath.Join(dir, "a.sbatch"),
		filepath.Join(dir, "b.sbatch"),
		filepath.Join(dir, "c.sbatch"),
	}, calls[0])
}

func TestDirWatcherMissingDirectory(t *testing.T) {
	loader := newTestLoader()
	_, err := NewDirWatcher(filepath.Join(t.TempDir(), "nope"), loader, 0, nil)
	assert.Error(t, err)
}
