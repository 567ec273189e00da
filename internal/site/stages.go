package site

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/halvard/stanza/internal/content"
	"codeberg.org/halvard/stanza/internal/logfields"
)

func stagePrepare(_ context.Context, bs *BuildState) error {
	absOut, err := filepath.Abs(bs.OutputDir)
	if err != nil {
		return newFatalStageError(StagePrepare, fmt.Errorf("resolve output dir: %w", err))
	}
	bs.OutputDir = absOut

	if err := os.MkdirAll(filepath.Dir(absOut), 0o755); err != nil {
		return newFatalStageError(StagePrepare, fmt.Errorf("create output parent: %w", err))
	}

	// Stage next to the output dir so the final swap is a rename, not a copy.
	staging := absOut + ".staging-" + shortID(bs.BuildID)
	if err := os.RemoveAll(staging); err != nil {
		return newFatalStageError(StagePrepare, fmt.Errorf("clear staging dir: %w", err))
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return newFatalStageError(StagePrepare, fmt.Errorf("create staging dir: %w", err))
	}
	bs.StagingDir = staging
	return nil
}

// abortStaging discards the staging dir of a failed build. The staging name
// embeds the build ID, so a leftover dir would never be reclaimed by a later
// build's prepare.
func (bs *BuildState) abortStaging() {
	if bs.StagingDir == "" {
		return
	}
	if err := os.RemoveAll(bs.StagingDir); err != nil {
		slog.Warn("Failed to remove staging dir", logfields.Path(bs.StagingDir), logfields.Error(err))
	}
}

func stageLoad(_ context.Context, bs *BuildState) error {
	cfg := bs.Builder.cfg
	contentDir := filepath.Join(bs.Builder.sourceDir, cfg.Content.Dir)

	site, err := content.Load(contentDir, cfg.Content.PostsDir, content.LoadOptions{
		IncludeDrafts: bs.opts.IncludeDrafts,
		IncludeFuture: bs.opts.IncludeFuture,
	})
	if err != nil {
		return newFatalStageError(StageLoad, err)
	}

	bs.Site = site
	bs.Report.Posts = len(site.Posts)
	bs.Report.Pages = len(site.Pages)
	return nil
}

func stageAssets(ctx context.Context, bs *BuildState) error {
	staticDir := filepath.Join(bs.Builder.sourceDir, bs.Builder.cfg.Content.StaticDir)
	if st, err := os.Stat(staticDir); err != nil || !st.IsDir() {
		return nil // a site without static assets is fine
	}

	err := filepath.WalkDir(staticDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(staticDir, p)
		if err != nil {
			return err
		}
		dst := filepath.Join(bs.StagingDir, rel)
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		return copyFile(p, dst)
	})
	if err != nil {
		return newFatalStageError(StageAssets, fmt.Errorf("copy static assets: %w", err))
	}
	return nil
}

func stagePublish(_ context.Context, bs *BuildState) error {
	old := bs.OutputDir + ".old-" + shortID(bs.BuildID)

	if _, err := os.Stat(bs.OutputDir); err == nil {
		if err := os.Rename(bs.OutputDir, old); err != nil {
			return newFatalStageError(StagePublish, fmt.Errorf("move previous output aside: %w", err))
		}
	}
	if err := os.Rename(bs.StagingDir, bs.OutputDir); err != nil {
		// Try to restore the previous output before giving up.
		_ = os.Rename(old, bs.OutputDir)
		return newFatalStageError(StagePublish, fmt.Errorf("activate staged output: %w", err))
	}
	if err := os.RemoveAll(old); err != nil {
		return newWarnStageError(StagePublish, fmt.Errorf("remove previous output: %w", err))
	}
	return nil
}

func stageReport(_ context.Context, bs *BuildState) error {
	bs.Report.finish(time.Since(bs.start))
	if err := bs.Report.write(bs.OutputDir); err != nil {
		return newWarnStageError(StageReport, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// shortID trims a build ID down to a filesystem-friendly suffix.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
