package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks the configuration for structural problems and returns the
// first one found.
func (c *Config) Validate() error {
	if c.Site.BaseURL != "" {
		u, err := url.Parse(c.Site.BaseURL)
		if err != nil {
			return fmt.Errorf("site.base_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("site.base_url must use http or https, got %q", c.Site.BaseURL)
		}
	}

	if c.Build.FeedSize < 0 {
		return fmt.Errorf("build.feed_size must not be negative, got %d", c.Build.FeedSize)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	poll, err := time.ParseDuration(c.Daemon.PollInterval)
	if err != nil {
		return fmt.Errorf("daemon.poll_interval is not a valid duration: %w", err)
	}
	if poll < 0 {
		return fmt.Errorf("daemon.poll_interval must not be negative")
	}
	quiet, err := time.ParseDuration(c.Daemon.QuietWindow)
	if err != nil {
		return fmt.Errorf("daemon.quiet_window is not a valid duration: %w", err)
	}
	if quiet <= 0 {
		return fmt.Errorf("daemon.quiet_window must be > 0")
	}
	maxDelay, err := time.ParseDuration(c.Daemon.MaxDelay)
	if err != nil {
		return fmt.Errorf("daemon.max_delay is not a valid duration: %w", err)
	}
	if maxDelay < quiet {
		return fmt.Errorf("daemon.max_delay must be >= daemon.quiet_window")
	}

	if c.Daemon.Auth != nil {
		switch c.Daemon.Auth.Type {
		case "ssh", "token", "basic", "none", "":
		default:
			return fmt.Errorf("daemon.auth.type must be one of ssh, token, basic or none, got %q", c.Daemon.Auth.Type)
		}
		if c.Daemon.Auth.Type == "token" && strings.TrimSpace(c.Daemon.Auth.Token) == "" {
			return fmt.Errorf("daemon.auth.type is token but no token is set")
		}
		if c.Daemon.Auth.Type == "ssh" && strings.TrimSpace(c.Daemon.Auth.KeyPath) == "" {
			return fmt.Errorf("daemon.auth.type is ssh but key_path is not set")
		}
	}

	return nil
}
