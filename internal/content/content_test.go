package content

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestLoad_PostsAndPages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "posts/first.md", "---\ntitle: First\ndate: 2024-01-01\ntags: [go]\n---\nbody\n")
	writeFile(t, dir, "posts/second.md", "---\ntitle: Second\ndate: 2024-02-01\ntags: [go, meta]\n---\nbody\n")
	writeFile(t, dir, "about.md", "---\ntitle: About\n---\nbody\n")
	writeFile(t, dir, "notes.txt", "not content")

	site, err := Load(dir, "posts", LoadOptions{})
	require.NoError(t, err)

	require.Len(t, site.Posts, 2)
	require.Len(t, site.Pages, 1)

	// Newest first.
	require.Equal(t, "Second", site.Posts[0].Title)
	require.Equal(t, "/posts/second/", site.Posts[0].URLPath)
	require.Equal(t, "posts/second/index.html", site.Posts[0].OutputFile())

	require.Equal(t, "/about/", site.Pages[0].URLPath)

	require.Equal(t, []string{"go", "meta"}, site.Tags())
	require.Len(t, site.PostsByTag("go"), 2)
	require.Len(t, site.PostsByTag("meta"), 1)
}

func TestLoad_PostWithoutDateFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "posts/bad.md", "---\ntitle: Bad\n---\nbody\n")

	_, err := Load(dir, "posts", LoadOptions{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no date")
}

func TestLoad_DraftsExcludedByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "posts/wip.md", "---\ntitle: WIP\ndate: 2024-01-01\ndraft: true\n---\nbody\n")

	site, err := Load(dir, "posts", LoadOptions{})
	require.NoError(t, err)
	require.Empty(t, site.Posts)

	site, err = Load(dir, "posts", LoadOptions{IncludeDrafts: true})
	require.NoError(t, err)
	require.Len(t, site.Posts, 1)
}

func TestLoad_FuturePostsExcludedByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "posts/soon.md", "---\ntitle: Soon\ndate: 2030-01-01\n---\nbody\n")
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	site, err := Load(dir, "posts", LoadOptions{Now: now})
	require.NoError(t, err)
	require.Empty(t, site.Posts)

	site, err = Load(dir, "posts", LoadOptions{Now: now, IncludeFuture: true})
	require.NoError(t, err)
	require.Len(t, site.Posts, 1)
}

func TestLoad_DuplicateOutputPathFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "posts/a.md", "---\ntitle: A\ndate: 2024-01-01\nslug: same\n---\nbody\n")
	writeFile(t, dir, "posts/b.md", "---\ntitle: B\ndate: 2024-01-02\nslug: same\n---\nbody\n")

	_, err := Load(dir, "posts", LoadOptions{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "output path")
}

func TestLoad_IndexFileMapsToDirectoryRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.md", "---\ntitle: Home\n---\nwelcome\n")
	writeFile(t, dir, "projects/index.md", "---\ntitle: Projects\n---\nlist\n")

	site, err := Load(dir, "posts", LoadOptions{})
	require.NoError(t, err)
	require.Len(t, site.Pages, 2)
	require.Equal(t, "/", site.Pages[0].URLPath)
	require.Equal(t, "/projects/", site.Pages[1].URLPath)
}

func TestLoad_DateTieBrokenBySlug(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "posts/bbb.md", "---\ntitle: B\ndate: 2024-01-01\n---\nbody\n")
	writeFile(t, dir, "posts/aaa.md", "---\ntitle: A\ndate: 2024-01-01\n---\nbody\n")

	site, err := Load(dir, "posts", LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, "aaa", site.Posts[0].Slug)
	require.Equal(t, "bbb", site.Posts[1].Slug)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":        "hello-world",
		"my_first_post":      "my-first-post",
		"What's Up? (2024)":  "whats-up-2024",
		"--already-sluggy--": "already-sluggy",
	}
	for in, want := range cases {
		require.Equal(t, want, Slugify(in), in)
	}
}

func TestTitleFromFilename(t *testing.T) {
	require.Equal(t, "My First Post", TitleFromFilename("my-first-post"))
	require.Equal(t, "Hello World", TitleFromFilename("hello_world"))
}
