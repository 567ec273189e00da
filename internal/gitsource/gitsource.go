// Package gitsource clones and updates the blog's source repository and
// answers "has the remote moved" without fetching.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/go-git/go-git/v5/storage/memory"

	"codeberg.org/halvard/stanza/internal/config"
	"codeberg.org/halvard/stanza/internal/logfields"
)

// ErrNotRepository is returned by Update when the target directory exists but
// is not a git clone.
var ErrNotRepository = errors.New("directory exists but is not a git repository")

// ErrBranchNotFound is returned by RemoteHead when the configured branch does
// not exist on the remote.
var ErrBranchNotFound = errors.New("branch not found on remote")

// Source is the configured blog repository.
type Source struct {
	URL    string
	Branch string
	Auth   *config.AuthConfig
}

// Client performs git operations under a working directory.
type Client struct {
	workDir string
}

// NewClient creates a git client rooted at workDir.
func NewClient(workDir string) *Client {
	return &Client{workDir: workDir}
}

// Path returns the local checkout path for the source.
func (c *Client) Path() string {
	return filepath.Join(c.workDir, "source")
}

// Clone clones the source branch into the working directory, replacing any
// existing checkout.
func (c *Client) Clone(ctx context.Context, src Source) (string, error) {
	repoPath := c.Path()

	slog.Debug("Cloning repository", logfields.URL(src.URL), logfields.Branch(src.Branch), logfields.Path(repoPath))

	if err := os.RemoveAll(repoPath); err != nil {
		return "", fmt.Errorf("failed to remove existing checkout: %w", err)
	}

	cloneOptions := &git.CloneOptions{
		URL: src.URL,
	}
	if src.Branch != "" {
		cloneOptions.ReferenceName = plumbing.ReferenceName("refs/heads/" + src.Branch)
		cloneOptions.SingleBranch = true
	}

	auth, err := authMethod(src.Auth)
	if err != nil {
		return "", fmt.Errorf("failed to setup authentication: %w", err)
	}
	cloneOptions.Auth = auth

	repo, err := git.PlainCloneContext(ctx, repoPath, false, cloneOptions)
	if err != nil {
		return "", fmt.Errorf("failed to clone repository %s: %w", src.URL, err)
	}

	if ref, err := repo.Head(); err == nil {
		slog.Info("Repository cloned", logfields.URL(src.URL), logfields.Commit(ref.Hash().String()[:8]), logfields.Path(repoPath))
	}
	return repoPath, nil
}

// Update fast-forwards an existing checkout, cloning when none exists.
func (c *Client) Update(ctx context.Context, src Source) (string, error) {
	repoPath := c.Path()

	if _, err := os.Stat(repoPath); os.IsNotExist(err) {
		return c.Clone(ctx, src)
	}
	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotRepository, repoPath)
	}

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	pullOptions := &git.PullOptions{RemoteName: "origin"}
	if src.Branch != "" {
		pullOptions.ReferenceName = plumbing.ReferenceName("refs/heads/" + src.Branch)
		pullOptions.SingleBranch = true
	}
	auth, err := authMethod(src.Auth)
	if err != nil {
		return "", fmt.Errorf("failed to setup authentication: %w", err)
	}
	pullOptions.Auth = auth

	err = worktree.PullContext(ctx, pullOptions)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		// A diverged checkout cannot fast-forward; start over from a clean clone.
		slog.Warn("Pull failed, falling back to fresh clone", logfields.URL(src.URL), logfields.Error(err))
		return c.Clone(ctx, src)
	}

	if ref, err := repo.Head(); err == nil {
		slog.Debug("Repository up to date", logfields.URL(src.URL), logfields.Commit(ref.Hash().String()[:8]))
	}
	return repoPath, nil
}

// Head returns the commit hash of the local checkout, or empty when there is
// no checkout yet.
func (c *Client) Head() string {
	repo, err := git.PlainOpen(c.Path())
	if err != nil {
		return ""
	}
	ref, err := repo.Head()
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}

// RemoteHead lists the remote's references without fetching and returns the
// hash of the source branch.
func (c *Client) RemoteHead(ctx context.Context, src Source) (string, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{src.URL},
	})

	auth, err := authMethod(src.Auth)
	if err != nil {
		return "", fmt.Errorf("failed to setup authentication: %w", err)
	}

	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth})
	if err != nil {
		return "", fmt.Errorf("failed to list remote references for %s: %w", src.URL, err)
	}

	want := plumbing.ReferenceName("refs/heads/" + src.Branch)
	for _, ref := range refs {
		if ref.Type() == plumbing.SymbolicReference {
			continue
		}
		if ref.Name() == want {
			return ref.Hash().String(), nil
		}
	}
	return "", fmt.Errorf("%w: %s on %s", ErrBranchNotFound, src.Branch, src.URL)
}

// authMethod converts the configured auth into a go-git transport method.
// A nil config or type "none" yields no authentication.
func authMethod(auth *config.AuthConfig) (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil
	}
	switch auth.Type {
	case "", "none":
		return nil, nil
	case "token":
		// Token auth over HTTP uses the token as password with any username.
		username := auth.Username
		if username == "" {
			username = "token"
		}
		return &githttp.BasicAuth{Username: username, Password: auth.Token}, nil
	case "basic":
		return &githttp.BasicAuth{Username: auth.Username, Password: auth.Password}, nil
	case "ssh":
		keys, err := gitssh.NewPublicKeysFromFile("git", auth.KeyPath, auth.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to load ssh key from %s: %w", auth.KeyPath, err)
		}
		return keys, nil
	default:
		return nil, fmt.Errorf("unsupported auth type: %s", auth.Type)
	}
}
