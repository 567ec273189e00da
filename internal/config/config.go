package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the full site configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Content ContentConfig `yaml:"content"`
	Build   BuildConfig   `yaml:"build"`
	Server  ServerConfig  `yaml:"server"`
	Daemon  DaemonConfig  `yaml:"daemon"`
}

// SiteConfig carries site-wide presentation metadata.
type SiteConfig struct {
	Title       string `yaml:"title"`
	BaseURL     string `yaml:"base_url"`
	Description string `yaml:"description,omitempty"`
	Author      string `yaml:"author,omitempty"`
	Language    string `yaml:"language,omitempty"`
}

// ContentConfig locates the source tree.
type ContentConfig struct {
	Dir        string `yaml:"dir"`
	LayoutsDir string `yaml:"layouts_dir"`
	StaticDir  string `yaml:"static_dir"`
	PostsDir   string `yaml:"posts_dir"` // subdirectory of Dir holding dated posts
}

// BuildConfig controls output generation.
type BuildConfig struct {
	OutputDir string `yaml:"output_dir"`
	Clean     bool   `yaml:"clean"` // Clean output directory before build
	FeedSize  int    `yaml:"feed_size,omitempty"`
}

// ServerConfig configures the local preview server.
type ServerConfig struct {
	Bind string `yaml:"bind,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// AuthConfig represents git authentication configuration.
type AuthConfig struct {
	Type     string `yaml:"type"` // "ssh", "token", "basic"
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// DaemonConfig configures the publish daemon. Durations are Go duration
// strings ("5m", "2s") parsed during validation.
type DaemonConfig struct {
	RepoURL       string      `yaml:"repo_url,omitempty"`
	Branch        string      `yaml:"branch,omitempty"`
	Auth          *AuthConfig `yaml:"auth,omitempty"`
	DataDir       string      `yaml:"data_dir,omitempty"`
	PollInterval  string      `yaml:"poll_interval,omitempty"`
	QuietWindow   string      `yaml:"quiet_window,omitempty"`
	MaxDelay      string      `yaml:"max_delay,omitempty"`
	WebhookSecret string      `yaml:"webhook_secret,omitempty"`
	NATSURL       string      `yaml:"nats_url,omitempty"`
	NATSSubject   string      `yaml:"nats_subject,omitempty"`
	Metrics       bool        `yaml:"metrics,omitempty"`
}

// PollIntervalDuration returns the parsed poll interval. Valid after Load.
func (d *DaemonConfig) PollIntervalDuration() time.Duration {
	v, _ := time.ParseDuration(d.PollInterval)
	return v
}

// QuietWindowDuration returns the parsed debounce quiet window. Valid after Load.
func (d *DaemonConfig) QuietWindowDuration() time.Duration {
	v, _ := time.ParseDuration(d.QuietWindow)
	return v
}

// MaxDelayDuration returns the parsed debounce max delay. Valid after Load.
func (d *DaemonConfig) MaxDelayDuration() time.Duration {
	v, _ := time.ParseDuration(d.MaxDelay)
	return v
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env files if present; a missing file is not an error and the
	// real environment always wins. godotenv never overrides keys that are
	// already set, so .env.local must load before .env to take precedence.
	for _, envPath := range []string{".env.local", ".env"} {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				fmt.Fprintf(os.Stderr, "Note: %s couldn't be loaded: %v\n", envPath, err)
			}
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Site.Title == "" {
		c.Site.Title = "A Blog"
	}
	if c.Site.Language == "" {
		c.Site.Language = "en"
	}
	if c.Content.Dir == "" {
		c.Content.Dir = "content"
	}
	if c.Content.LayoutsDir == "" {
		c.Content.LayoutsDir = "layouts"
	}
	if c.Content.StaticDir == "" {
		c.Content.StaticDir = "static"
	}
	if c.Content.PostsDir == "" {
		c.Content.PostsDir = "posts"
	}
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = "public"
		c.Build.Clean = true
	}
	if c.Build.FeedSize == 0 {
		c.Build.FeedSize = 20
	}
	if c.Server.Bind == "" {
		c.Server.Bind = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 1313
	}
	if c.Daemon.Branch == "" {
		c.Daemon.Branch = "main"
	}
	if c.Daemon.DataDir == "" {
		c.Daemon.DataDir = "./daemon-data"
	}
	if c.Daemon.PollInterval == "" {
		c.Daemon.PollInterval = "5m"
	}
	if c.Daemon.QuietWindow == "" {
		c.Daemon.QuietWindow = "2s"
	}
	if c.Daemon.MaxDelay == "" {
		c.Daemon.MaxDelay = "30s"
	}
	if c.Daemon.NATSSubject == "" {
		c.Daemon.NATSSubject = "stanza.builds"
	}
}
