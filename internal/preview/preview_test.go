package preview

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/halvard/stanza/internal/config"
	"codeberg.org/halvard/stanza/internal/metrics"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Content.Dir = "content"
	cfg.Content.LayoutsDir = "layouts"
	cfg.Content.StaticDir = "static"
	return cfg
}

func TestAddRecursiveWatchesNestedDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "posts", "2026"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "about.md"), []byte("# About"), 0o644))

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	count, err := addRecursive(watcher, root)
	require.NoError(t, err)

	// root, posts, posts/2026; dot-directories are skipped.
	assert.Equal(t, 3, count)
}

func TestAddRecursiveMissingRoot(t *testing.T) {
	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	_, err = addRecursive(watcher, filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestRelevantFiltersNoise(t *testing.T) {
	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"markdown write", fsnotify.Event{Name: "content/hello.md", Op: fsnotify.Write}, true},
		{"new directory", fsnotify.Event{Name: "content/posts", Op: fsnotify.Create}, true},
		{"chmod only", fsnotify.Event{Name: "content/hello.md", Op: fsnotify.Chmod}, false},
		{"hidden file", fsnotify.Event{Name: "content/.hello.md.swp", Op: fsnotify.Write}, false},
		{"editor backup", fsnotify.Event{Name: "content/hello.md~", Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relevant(tt.event))
		})
	}
}

type spyRecorder struct {
	metrics.NoopRecorder
	watched int
}

func (s *spyRecorder) SetWatchedFiles(n int) { s.watched = n }

func TestWithRecorderReplacesNoop(t *testing.T) {
	srv, err := New(testConfig(), t.TempDir(), Options{Port: 1313})
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(srv.outputDir) })

	spy := &spyRecorder{}
	assert.Same(t, srv, srv.WithRecorder(spy))

	srv.recorder.SetWatchedFiles(7)
	assert.Equal(t, 7, spy.watched)
}

func TestWatchRootsSkipsMissingDirs(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "content"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "static"), 0o755))

	s := &Server{cfg: testConfig(), sourceDir: src}

	roots := s.watchRoots()
	require.Len(t, roots, 2)
	assert.Equal(t, filepath.Join(src, "content"), roots[0])
	assert.Equal(t, filepath.Join(src, "static"), roots[1])
}
