package config

import (
	"fmt"
	"os"
)

const starterConfig = `# Stanza site configuration.
site:
  title: "My Blog"
  base_url: "https://example.com"
  description: "Notes on things I build"
  author: "Your Name"

content:
  dir: content
  layouts_dir: layouts
  static_dir: static
  posts_dir: posts

build:
  output_dir: public
  clean: true
  feed_size: 20

server:
  bind: 127.0.0.1
  port: 1313

# Uncomment to run 'stanza daemon' against a remote repository.
# daemon:
#   repo_url: "https://example.com/you/blog.git"
#   branch: main
#   poll_interval: 5m
#   auth:
#     type: token
#     token: ${GIT_TOKEN}
`

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	if err := os.WriteFile(configPath, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
