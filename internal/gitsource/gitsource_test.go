package gitsource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"codeberg.org/halvard/stanza/internal/config"
)

// initOriginRepo creates a local repository with one commit on the given
// branch and returns its path plus the commit hash.
func initOriginRepo(t *testing.T, branch string) (string, string) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.ReferenceName("refs/heads/" + branch)},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# blog\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)

	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	return dir, hash.String()
}

func TestClone_FromLocalOrigin(t *testing.T) {
	origin, hash := initOriginRepo(t, "main")
	client := NewClient(t.TempDir())

	path, err := client.Clone(context.Background(), Source{URL: origin, Branch: "main"})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(path, "README.md"))
	require.Equal(t, hash, client.Head())
}

func TestUpdate_ClonesWhenCheckoutMissing(t *testing.T) {
	origin, _ := initOriginRepo(t, "main")
	client := NewClient(t.TempDir())

	path, err := client.Update(context.Background(), Source{URL: origin, Branch: "main"})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(path, "README.md"))
}

func TestUpdate_RejectsNonRepositoryDirectory(t *testing.T) {
	workDir := t.TempDir()
	client := NewClient(workDir)
	require.NoError(t, os.MkdirAll(client.Path(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(client.Path(), "stray.txt"), []byte("x"), 0o644))

	_, err := client.Update(context.Background(), Source{URL: "https://example.com/r.git", Branch: "main"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotRepository))
}

func TestRemoteHead_ReturnsBranchHash(t *testing.T) {
	origin, hash := initOriginRepo(t, "main")
	client := NewClient(t.TempDir())

	got, err := client.RemoteHead(context.Background(), Source{URL: origin, Branch: "main"})
	require.NoError(t, err)
	require.Equal(t, hash, got)
}

func TestRemoteHead_UnknownBranch(t *testing.T) {
	origin, _ := initOriginRepo(t, "main")
	client := NewClient(t.TempDir())

	_, err := client.RemoteHead(context.Background(), Source{URL: origin, Branch: "release"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrBranchNotFound))
}

func TestRemoteHead_DetectsNewCommit(t *testing.T) {
	origin, first := initOriginRepo(t, "main")
	client := NewClient(t.TempDir())
	src := Source{URL: origin, Branch: "main"}

	_, err := client.Clone(context.Background(), src)
	require.NoError(t, err)

	// Push a second commit to the origin.
	repo, err := git.PlainOpen(origin)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(origin, "post.md"), []byte("new\n"), 0o644))
	_, err = wt.Add("post.md")
	require.NoError(t, err)
	second, err := wt.Commit("add post", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	remote, err := client.RemoteHead(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, second.String(), remote)
	require.NotEqual(t, first, remote)
	require.Equal(t, first, client.Head())

	// Update brings the checkout to the remote head.
	_, err = client.Update(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, second.String(), client.Head())
}

func TestAuthMethod_Variants(t *testing.T) {
	m, err := authMethod(nil)
	require.NoError(t, err)
	require.Nil(t, m)

	m, err = authMethod(&config.AuthConfig{Type: "token", Token: "secret"})
	require.NoError(t, err)
	require.NotNil(t, m)

	m, err = authMethod(&config.AuthConfig{Type: "basic", Username: "u", Password: "p"})
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = authMethod(&config.AuthConfig{Type: "kerberos"})
	require.Error(t, err)
}
