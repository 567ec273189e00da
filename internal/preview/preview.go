// Package preview runs the local authoring server: it builds the site into a
// scratch directory, serves it, and rebuilds whenever a source file changes.
package preview

import (
	"context"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"codeberg.org/halvard/stanza/internal/config"
	"codeberg.org/halvard/stanza/internal/logfields"
	"codeberg.org/halvard/stanza/internal/metrics"
	"codeberg.org/halvard/stanza/internal/site"
)

// debounceWindow coalesces editor save bursts into one rebuild.
const debounceWindow = 250 * time.Millisecond

// Options controls the preview server.
type Options struct {
	Port          int
	IncludeDrafts bool
	IncludeFuture bool
}

// Server watches a site source tree and serves live-rebuilt output.
type Server struct {
	cfg       *config.Config
	sourceDir string
	builder   *site.Builder
	recorder  metrics.Recorder
	outputDir string
	opts      Options
}

// New creates a preview server for the site rooted at sourceDir. Output goes
// to a scratch directory that is removed when the server stops.
func New(cfg *config.Config, sourceDir string, opts Options) (*Server, error) {
	outputDir, err := os.MkdirTemp("", "stanza-preview-*")
	if err != nil {
		return nil, err
	}
	if opts.Port == 0 {
		opts.Port = cfg.Server.Port
	}

	return &Server{
		cfg:       cfg,
		sourceDir: sourceDir,
		builder:   site.NewBuilder(cfg, sourceDir),
		recorder:  metrics.NoopRecorder{},
		outputDir: outputDir,
		opts:      opts,
	}, nil
}

// WithRecorder injects a metrics recorder, shared with the underlying builder.
func (s *Server) WithRecorder(r metrics.Recorder) *Server {
	s.recorder = r
	s.builder.WithRecorder(r)
	return s
}

// Run serves until ctx is done. A failed build keeps the previous output in
// place, so the server is useful even while the source has errors.
func (s *Server) Run(ctx context.Context) error {
	defer os.RemoveAll(s.outputDir)

	s.rebuild(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range s.watchRoots() {
		n, err := addRecursive(watcher, dir)
		if err != nil {
			slog.Warn("Cannot watch directory", logfields.Path(dir), logfields.Error(err))
			continue
		}
		watched += n
	}
	s.recorder.SetWatchedFiles(watched)
	slog.Info("Watching for changes", slog.Int("directories", watched))

	srv, err := s.startHTTP()
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	debounce := time.NewTimer(debounceWindow)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			// New directories must join the watch set, or edits inside
			// them would go unnoticed.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if n, err := addRecursive(watcher, event.Name); err == nil {
						watched += n
						s.recorder.SetWatchedFiles(watched)
					}
				}
			}
			debounce.Reset(debounceWindow)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("File watcher error", logfields.Error(err))
		case <-debounce.C:
			s.rebuild(ctx)
		}
	}
}

func (s *Server) rebuild(ctx context.Context) {
	_, err := s.builder.Build(ctx, site.BuildOptions{
		OutputDir:     s.outputDir,
		IncludeDrafts: s.opts.IncludeDrafts,
		IncludeFuture: s.opts.IncludeFuture,
	})
	if err != nil {
		slog.Error("Preview build failed, serving previous output", logfields.Error(err))
	}
}

func (s *Server) startHTTP() (*http.Server, error) {
	addr := net.JoinHostPort(s.cfg.Server.Bind, strconv.Itoa(s.opts.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.FileServer(http.Dir(s.outputDir)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	go func() {
		slog.Info("Preview server listening",
			logfields.Port(s.opts.Port),
			logfields.URL("http://"+addr+"/"))
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("Preview server failed", logfields.Error(err))
		}
	}()
	return srv, nil
}

// watchRoots lists the source directories whose changes trigger rebuilds.
func (s *Server) watchRoots() []string {
	roots := []string{
		filepath.Join(s.sourceDir, s.cfg.Content.Dir),
		filepath.Join(s.sourceDir, s.cfg.Content.LayoutsDir),
		filepath.Join(s.sourceDir, s.cfg.Content.StaticDir),
	}
	out := roots[:0]
	for _, r := range roots {
		if info, err := os.Stat(r); err == nil && info.IsDir() {
			out = append(out, r)
		}
	}
	return out
}

// addRecursive watches root and every directory below it, returning the
// number of directories added.
func addRecursive(watcher *fsnotify.Watcher, root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

// relevant filters out events that never affect the built site.
func relevant(event fsnotify.Event) bool {
	if event.Op.Has(fsnotify.Chmod) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return true
}
