package watch

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = log.New(io.Discard, "", 0)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func startWatcher(t *testing.T, paths []string) (*Watcher, <-chan []string) {
	t.Helper()
	got := make(chan []string, 16)
	w, err := New(paths, func(changed []string) { got <- changed }, Options{Debounce: 50 * time.Millisecond, Logger: quiet})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	w.Start(ctx)
	return w, got
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "states.txt")
	writeFile(t, path, "1 0 7000 0 0 0 7.5 0\n")

	_, got := startWatcher(t, []string{path})

	for i := 0; i < 5; i++ {
		writeFile(t, path, "1 0 7000 0 0 0 7.5 0\n")
	}

	select {
	case changed := <-got:
		assert.Equal(t, []string{path}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}

	select {
	case extra := <-got:
		t.Fatalf("burst should collapse into one delivery, got another: %v", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "states.txt")
	writeFile(t, path, "")

	_, got := startWatcher(t, []string{path})
	writeFile(t, filepath.Join(dir, "unrelated.txt"), "x")

	select {
	case changed := <-got:
		t.Fatalf("unexpected delivery: %v", changed)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_SeesRenameReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "states.txt")
	writeFile(t, path, "old")

	_, got := startWatcher(t, []string{path})

	tmp := filepath.Join(dir, ".states.txt.tmp")
	writeFile(t, tmp, "new")
	require.NoError(t, os.Rename(tmp, path))

	select {
	case changed := <-got:
		assert.Equal(t, []string{path}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("rename over the watched file was not delivered")
	}
}

func TestWatcher_SetFiles(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	pa := filepath.Join(a, "a.txt")
	pb := filepath.Join(b, "b.txt")
	writeFile(t, pa, "")
	writeFile(t, pb, "")

	w, got := startWatcher(t, []string{pa})
	assert.Equal(t, []string{pa}, w.Files())

	require.NoError(t, w.SetFiles([]string{pb}))
	assert.Equal(t, []string{pb}, w.Files())

	writeFile(t, pa, "ignored now")
	writeFile(t, pb, "watched")

	select {
	case changed := <-got:
		assert.Equal(t, []string{pb}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered for the new file set")
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing", "states.txt")}, nil, Options{Logger: quiet})
	assert.Error(t, err)
}

func TestWatcher_SetFilesFailureKeepsPreviousSet(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	pa := filepath.Join(a, "a.txt")
	pb := filepath.Join(b, "b.txt")
	writeFile(t, pa, "")
	writeFile(t, pb, "")

	w, got := startWatcher(t, []string{pa})

	err := w.SetFiles([]string{pb, filepath.Join(t.TempDir(), "missing", "c.txt")})
	require.Error(t, err)

	assert.Equal(t, []string{pa}, w.Files())
	assert.Equal(t, []string{a}, w.fsw.WatchList(), "directories added before the failure are rolled back")

	writeFile(t, pa, "still watched")
	select {
	case changed := <-got:
		assert.Equal(t, []string{pa}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("previous file set stopped delivering")
	}
}
