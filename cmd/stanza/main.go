package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"codeberg.org/halvard/stanza/internal/config"
	"codeberg.org/halvard/stanza/internal/content"
	"codeberg.org/halvard/stanza/internal/logfields"
	"codeberg.org/halvard/stanza/internal/preview"
	"codeberg.org/halvard/stanza/internal/publishd"
	"codeberg.org/halvard/stanza/internal/site"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Output string `short:"o" help:"Output directory for the generated site"`
		Drafts bool   `short:"D" help:"Include draft posts"`
		Future bool   `short:"F" help:"Include future-dated posts"`
	} `cmd:"" help:"Build the site once"`

	Serve struct {
		Port   int  `short:"p" help:"Port for the preview server"`
		Drafts bool `short:"D" help:"Include draft posts"`
		Future bool `short:"F" help:"Include future-dated posts"`
	} `cmd:"" help:"Serve the site locally, rebuilding on change"`

	New struct {
		Title string `arg:"" help:"Title of the new post"`
	} `cmd:"" help:"Create a new post skeleton"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new site configuration"`

	Daemon struct {
		DataDir string `short:"d" help:"Data directory for daemon state"`
	} `cmd:"" help:"Run the publish daemon"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	switch ctx.Command() {
	case "build":
		cfg := loadConfig()
		if err := runBuild(cfg); err != nil {
			slog.Error("Build failed", logfields.Error(err))
			os.Exit(1)
		}
	case "serve":
		cfg := loadConfig()
		if err := runServe(cfg); err != nil {
			slog.Error("Serve failed", logfields.Error(err))
			os.Exit(1)
		}
	case "new <title>":
		cfg := loadConfig()
		if err := runNew(cfg, CLI.New.Title); err != nil {
			slog.Error("New post failed", logfields.Error(err))
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", logfields.Error(err))
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", CLI.Config)
	case "daemon":
		cfg := loadConfig()
		if CLI.Daemon.DataDir != "" {
			cfg.Daemon.DataDir = CLI.Daemon.DataDir
		}
		if err := runDaemon(cfg); err != nil {
			slog.Error("Daemon failed", logfields.Error(err))
			os.Exit(1)
		}
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", logfields.Path(CLI.Config), logfields.Error(err))
		os.Exit(1)
	}
	return cfg
}

func runBuild(cfg *config.Config) error {
	sourceDir := filepath.Dir(CLI.Config)
	builder := site.NewBuilder(cfg, sourceDir)

	report, err := builder.Build(context.Background(), site.BuildOptions{
		OutputDir:     CLI.Build.Output,
		IncludeDrafts: CLI.Build.Drafts,
		IncludeFuture: CLI.Build.Future,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Built %d pages in %s (%s)\n",
		report.RenderedPages, report.Duration.Round(time.Millisecond), report.Outcome)
	return nil
}

func runServe(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := preview.New(cfg, filepath.Dir(CLI.Config), preview.Options{
		Port:          CLI.Serve.Port,
		IncludeDrafts: CLI.Serve.Drafts,
		IncludeFuture: CLI.Serve.Future,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// runNew scaffolds a dated post under the posts directory.
func runNew(cfg *config.Config, title string) error {
	slug := content.Slugify(title)
	if slug == "" {
		return fmt.Errorf("title %q produces an empty slug", title)
	}

	dir := filepath.Join(filepath.Dir(CLI.Config), cfg.Content.Dir, cfg.Content.PostsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, slug+".md")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("post already exists: %s", path)
	}

	body := fmt.Sprintf(`---
title: %q
date: %s
draft: true
tags: []
---

Write here.
`, title, time.Now().Format("2006-01-02T15:04:05"))

	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return err
	}
	fmt.Printf("Created %s\n", path)
	return nil
}

func runDaemon(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := publishd.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("daemon error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	slog.Info("Daemon stopped")
	return nil
}
