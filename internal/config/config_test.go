package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "site:\n  title: Test Blog\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "Test Blog", cfg.Site.Title)
	require.Equal(t, "content", cfg.Content.Dir)
	require.Equal(t, "posts", cfg.Content.PostsDir)
	require.Equal(t, "public", cfg.Build.OutputDir)
	require.True(t, cfg.Build.Clean)
	require.Equal(t, 20, cfg.Build.FeedSize)
	require.Equal(t, 1313, cfg.Server.Port)
	require.Equal(t, 5*time.Minute, cfg.Daemon.PollIntervalDuration())
	require.Equal(t, "main", cfg.Daemon.Branch)
	require.Equal(t, "stanza.builds", cfg.Daemon.NATSSubject)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("STANZA_TEST_TITLE", "From Env")
	path := writeConfig(t, "site:\n  title: ${STANZA_TEST_TITLE}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "From Env", cfg.Site.Title)
}

func TestLoad_EnvLocalOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STANZA_TEST_AUTHOR=shared\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("STANZA_TEST_AUTHOR=local\n"), 0o644))
	t.Setenv("STANZA_TEST_AUTHOR", "")
	require.NoError(t, os.Unsetenv("STANZA_TEST_AUTHOR"))

	path := writeConfig(t, "site:\n  title: Test Blog\n  author: ${STANZA_TEST_AUTHOR}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "local", cfg.Site.Author)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "site: [unclosed\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_BadBaseURL(t *testing.T) {
	path := writeConfig(t, "site:\n  base_url: \"ftp://example.com\"\n")
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "base_url")
}

func TestValidate_TokenAuthRequiresToken(t *testing.T) {
	path := writeConfig(t, "daemon:\n  repo_url: https://example.com/r.git\n  auth:\n    type: token\n")
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "token")
}

func TestValidate_MaxDelayBelowQuietWindow(t *testing.T) {
	path := writeConfig(t, "daemon:\n  quiet_window: 10s\n  max_delay: 1s\n")
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "max_delay")
}

func TestInit_RefusesOverwriteWithoutForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	// The starter file must itself be loadable.
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "My Blog", cfg.Site.Title)
}
