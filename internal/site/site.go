// Package site turns a loaded content tree into the static output directory
// through a staged build pipeline.
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"codeberg.org/halvard/stanza/internal/config"
	"codeberg.org/halvard/stanza/internal/content"
	"codeberg.org/halvard/stanza/internal/logfields"
	"codeberg.org/halvard/stanza/internal/markdown"
	"codeberg.org/halvard/stanza/internal/metrics"
)

// StageName is a strongly-typed identifier for a build stage.
type StageName string

// Canonical stage names.
const (
	StagePrepare StageName = "prepare"
	StageLoad    StageName = "load"
	StageRender  StageName = "render"
	StageAssets  StageName = "assets"
	StageFeed    StageName = "feed"
	StageSitemap StageName = "sitemap"
	StageVerify  StageName = "verify"
	StagePublish StageName = "publish"
	StageReport  StageName = "report"
)

// Stage is a discrete unit of work in the site build.
type Stage func(ctx context.Context, bs *BuildState) error

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}
func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}
func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// BuildOptions control a single build run.
type BuildOptions struct {
	BuildID       string // generated when empty
	OutputDir     string // overrides config when non-empty
	IncludeDrafts bool
	IncludeFuture bool
}

// Builder runs builds for one source tree.
type Builder struct {
	cfg       *config.Config
	sourceDir string
	renderer  *markdown.Renderer
	recorder  metrics.Recorder
}

// NewBuilder creates a Builder for the blog rooted at sourceDir (the
// directory holding content/, layouts/ and static/).
func NewBuilder(cfg *config.Config, sourceDir string) *Builder {
	return &Builder{
		cfg:       cfg,
		sourceDir: sourceDir,
		renderer:  markdown.NewRenderer(),
		recorder:  metrics.NoopRecorder{},
	}
}

// WithRecorder injects a metrics recorder.
func (b *Builder) WithRecorder(r metrics.Recorder) *Builder {
	if r != nil {
		b.recorder = r
	}
	return b
}

// BuildState carries mutable state across stages.
type BuildState struct {
	Builder *Builder
	Site    *content.Site
	Report  *BuildReport
	Timings map[StageName]time.Duration

	BuildID    string
	StagingDir string
	OutputDir  string

	// pages written during render, used by sitemap and verify
	written []writtenPage

	opts  BuildOptions
	start time.Time
}

type writtenPage struct {
	URLPath string
	File    string // absolute path inside staging
	LastMod time.Time
}

// Build runs the full pipeline and returns its report. The returned error is
// non-nil only for fatal or canceled builds; warning-only builds succeed.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*BuildReport, error) {
	if opts.BuildID == "" {
		opts.BuildID = uuid.NewString()
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = b.cfg.Build.OutputDir
	}

	bs := &BuildState{
		Builder:   b,
		Report:    newBuildReport(opts.BuildID),
		Timings:   make(map[StageName]time.Duration),
		BuildID:   opts.BuildID,
		OutputDir: outputDir,
		opts:      opts,
		start:     time.Now(),
	}

	slog.Info("Starting site build", logfields.BuildID(opts.BuildID), logfields.Path(outputDir))

	stages := []struct {
		name StageName
		fn   Stage
	}{
		{StagePrepare, stagePrepare},
		{StageLoad, stageLoad},
		{StageRender, stageRender},
		{StageAssets, stageAssets},
		{StageFeed, stageFeed},
		{StageSitemap, stageSitemap},
		{StageVerify, stageVerify},
		{StagePublish, stagePublish},
		{StageReport, stageReport},
	}

	err := runStages(ctx, bs, stages)
	bs.Report.finish(time.Since(bs.start))
	b.recorder.ObserveBuildDuration(time.Since(bs.start))
	b.recorder.IncBuildOutcome(string(bs.Report.Outcome))
	b.recorder.SetPagesRendered(bs.Report.RenderedPages)

	if err != nil {
		bs.abortStaging()
		slog.Error("Site build failed", logfields.BuildID(opts.BuildID), logfields.Error(err))
		return bs.Report, err
	}

	slog.Info("Site build finished",
		logfields.BuildID(opts.BuildID),
		logfields.Outcome(string(bs.Report.Outcome)),
		logfields.Pages(bs.Report.RenderedPages),
		logfields.DurationMS(float64(bs.Report.Duration.Milliseconds())))
	return bs.Report, nil
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal error or cancellation.
func runStages(ctx context.Context, bs *BuildState, stages []struct {
	name StageName
	fn   Stage
}) error {
	rec := bs.Builder.recorder
	for _, st := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(st.name, ctx.Err())
			bs.Report.recordError(se)
			rec.IncStageResult(string(st.name), metrics.ResultCanceled)
			return se
		default:
		}

		t0 := time.Now()
		err := st.fn(ctx, bs)
		dur := time.Since(t0)
		bs.Timings[st.name] = dur
		bs.Report.StageDurations[st.name] = dur
		rec.ObserveStageDuration(string(st.name), dur)

		if err == nil {
			rec.IncStageResult(string(st.name), metrics.ResultSuccess)
			continue
		}

		var se *StageError
		if !errors.As(err, &se) {
			// Unknown errors are fatal by default.
			se = newFatalStageError(st.name, err)
		}
		switch se.Kind {
		case StageErrorWarning:
			bs.Report.recordWarning(se)
			rec.IncStageResult(string(st.name), metrics.ResultWarning)
			continue
		case StageErrorCanceled:
			bs.Report.recordError(se)
			rec.IncStageResult(string(st.name), metrics.ResultCanceled)
			return se
		default:
			bs.Report.recordError(se)
			rec.IncStageResult(string(st.name), metrics.ResultFatal)
			return se
		}
	}
	return nil
}
