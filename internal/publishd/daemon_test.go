package publishd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/halvard/stanza/internal/config"
)

func TestNewRequiresRepoURL(t *testing.T) {
	cfg := &config.Config{}
	cfg.Daemon.DataDir = t.TempDir()

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repo_url")
}

func TestNewInitializesState(t *testing.T) {
	cfg := &config.Config{}
	cfg.Daemon.RepoURL = "https://example.com/blog.git"
	cfg.Daemon.DataDir = t.TempDir()
	cfg.Daemon.Branch = "main"
	cfg.Daemon.QuietWindow = "2s"
	cfg.Daemon.MaxDelay = "30s"
	cfg.Daemon.PollInterval = "5m"

	d, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = d.store.Close() }()

	assert.Equal(t, filepath.Join(cfg.Daemon.DataDir, "site"), d.SiteDir())
	assert.Equal(t, "main", d.source().Branch)
	assert.Nil(t, d.publisher)
	assert.Nil(t, d.registry)
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "deadbeef", shortHash("deadbeefcafef00d"))
	assert.Equal(t, "abc", shortHash("abc"))
}
