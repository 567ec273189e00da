// Package publishd implements the publish daemon: it watches the blog's git
// repository for pushes, rebuilds the site, serves the output, and records
// build history.
package publishd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"

	"codeberg.org/halvard/stanza/internal/buildlog"
	"codeberg.org/halvard/stanza/internal/config"
	"codeberg.org/halvard/stanza/internal/gitsource"
	"codeberg.org/halvard/stanza/internal/logfields"
	"codeberg.org/halvard/stanza/internal/metrics"
	"codeberg.org/halvard/stanza/internal/site"
)

// Daemon runs the push-triggered publish loop.
type Daemon struct {
	cfg       *config.Config
	git       *gitsource.Client
	store     *buildlog.Store
	debouncer *Debouncer
	scheduler gocron.Scheduler
	publisher *EventPublisher
	registry  *prom.Registry
	recorder  metrics.Recorder
	httpSrv   *http.Server

	startTime time.Time

	mu            sync.RWMutex
	lastBuiltHash string
	lastRecord    *buildlog.Record
}

// New constructs a Daemon from configuration. The daemon requires a
// configured repository URL.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg.Daemon.RepoURL == "" {
		return nil, fmt.Errorf("daemon requires daemon.repo_url to be configured")
	}

	store, err := buildlog.Open(filepath.Join(cfg.Daemon.DataDir, "builds.db"))
	if err != nil {
		return nil, fmt.Errorf("open build log: %w", err)
	}

	debouncer, err := NewDebouncer(DebouncerConfig{
		QuietWindow: cfg.Daemon.QuietWindowDuration(),
		MaxDelay:    cfg.Daemon.MaxDelayDuration(),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create debouncer: %w", err)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	d := &Daemon{
		cfg:       cfg,
		git:       gitsource.NewClient(cfg.Daemon.DataDir),
		store:     store,
		debouncer: debouncer,
		scheduler: scheduler,
		recorder:  metrics.NoopRecorder{},
		startTime: time.Now(),
	}

	if cfg.Daemon.Metrics {
		d.registry = prom.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(d.registry)
	}

	if cfg.Daemon.NATSURL != "" {
		publisher, err := NewEventPublisher(cfg.Daemon.NATSURL, cfg.Daemon.NATSSubject)
		if err != nil {
			// The daemon can publish a blog without its event bus.
			slog.Warn("NATS unavailable, continuing without event publication", logfields.Error(err))
		} else {
			d.publisher = publisher
		}
	}

	return d, nil
}

// SiteDir is where the daemon publishes the built site.
func (d *Daemon) SiteDir() string {
	return filepath.Join(d.cfg.Daemon.DataDir, "site")
}

func (d *Daemon) source() gitsource.Source {
	return gitsource.Source{
		URL:    d.cfg.Daemon.RepoURL,
		Branch: d.cfg.Daemon.Branch,
		Auth:   d.cfg.Daemon.Auth,
	}
}

// Start runs the daemon until ctx is done.
func (d *Daemon) Start(ctx context.Context) error {
	slog.Info("Publish daemon starting",
		logfields.URL(d.cfg.Daemon.RepoURL),
		logfields.Branch(d.cfg.Daemon.Branch),
		slog.String("poll_interval", d.cfg.Daemon.PollInterval))

	go d.debouncer.Run(ctx)

	if _, err := d.scheduler.NewJob(
		gocron.DurationJob(d.cfg.Daemon.PollIntervalDuration()),
		gocron.NewTask(d.pollRemote),
		gocron.WithName("remote-poll"),
	); err != nil {
		return fmt.Errorf("schedule remote poll: %w", err)
	}
	d.scheduler.Start()

	if err := d.startHTTP(); err != nil {
		return err
	}

	// Build once at startup so the server never serves an empty site.
	d.debouncer.Request("startup")

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-d.debouncer.Builds():
			d.runBuild(ctx, req)
		}
	}
}

// Stop shuts the daemon down gracefully.
func (d *Daemon) Stop(ctx context.Context) error {
	if d.httpSrv != nil {
		if err := d.httpSrv.Shutdown(ctx); err != nil {
			slog.Warn("HTTP server shutdown failed", logfields.Error(err))
		}
	}
	if err := d.scheduler.Shutdown(); err != nil {
		slog.Warn("Scheduler shutdown failed", logfields.Error(err))
	}
	d.publisher.Close()
	if err := d.store.Close(); err != nil {
		return fmt.Errorf("close build log: %w", err)
	}
	return nil
}

// pollRemote is invoked by the scheduler; a moved remote head requests a build.
func (d *Daemon) pollRemote() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	remote, err := d.git.RemoteHead(ctx, d.source())
	if err != nil {
		slog.Warn("Remote poll failed", logfields.URL(d.cfg.Daemon.RepoURL), logfields.Error(err))
		return
	}

	d.mu.RLock()
	built := d.lastBuiltHash
	d.mu.RUnlock()

	if remote != built {
		slog.Info("Remote moved, requesting build", logfields.Commit(shortHash(remote)))
		d.debouncer.Request("poll")
	}
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

// runBuild syncs the checkout and runs the site pipeline once.
func (d *Daemon) runBuild(ctx context.Context, req BuildRequest) {
	buildID := uuid.NewString()
	started := time.Now()

	slog.Info("Daemon build starting",
		logfields.BuildID(buildID),
		logfields.Trigger(req.Trigger),
		slog.Int("coalesced_requests", req.Count))

	checkout, err := d.git.Update(ctx, d.source())
	if err != nil {
		slog.Error("Source sync failed", logfields.BuildID(buildID), logfields.Error(err))
		d.recordBuild(ctx, buildID, req.Trigger, "failed", nil, time.Since(started))
		return
	}

	builder := site.NewBuilder(d.cfg, checkout).WithRecorder(d.recorder)
	report, err := builder.Build(ctx, site.BuildOptions{
		BuildID:   buildID,
		OutputDir: d.SiteDir(),
	})
	if err != nil {
		slog.Error("Daemon build failed", logfields.BuildID(buildID), logfields.Error(err))
		d.recordBuild(ctx, buildID, req.Trigger, string(report.Outcome), report, time.Since(started))
		return
	}

	d.mu.Lock()
	d.lastBuiltHash = d.git.Head()
	d.mu.Unlock()

	d.recordBuild(ctx, buildID, req.Trigger, string(report.Outcome), report, time.Since(started))
}

func (d *Daemon) recordBuild(ctx context.Context, buildID, trigger, outcome string, report *site.BuildReport, duration time.Duration) {
	rec := buildlog.Record{
		ID:       buildID,
		Trigger:  trigger,
		Outcome:  outcome,
		Started:  time.Now().Add(-duration),
		Duration: duration,
	}
	if report != nil {
		rec.Pages = report.RenderedPages
		rec.Warnings = len(report.Warnings)
	}

	if err := d.store.Append(ctx, rec); err != nil {
		slog.Warn("Failed to record build", logfields.BuildID(buildID), logfields.Error(err))
	}

	d.mu.Lock()
	d.lastRecord = &rec
	commit := d.lastBuiltHash
	d.mu.Unlock()

	d.publisher.Publish(BuildEvent{
		BuildID:  buildID,
		Trigger:  trigger,
		Outcome:  outcome,
		Pages:    rec.Pages,
		Duration: duration,
		Commit:   commit,
		At:       time.Now().UTC(),
	})
}
