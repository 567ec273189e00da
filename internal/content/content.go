// Package content loads the source tree into the page model the build
// pipeline renders.
package content

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"codeberg.org/halvard/stanza/internal/frontmatter"
)

// Page is a single content document after frontmatter extraction.
type Page struct {
	SourcePath string // absolute path to the source file
	RelPath    string // path relative to the content dir
	Slug       string
	Title      string
	Date       time.Time
	Tags       []string
	Summary    string
	Draft      bool
	Body       []byte // Markdown body, frontmatter removed
	IsPost     bool

	// URLPath is the site-relative output path with a trailing slash,
	// e.g. "/posts/hello-world/" or "/about/".
	URLPath string
}

// OutputFile returns the file the page renders to, relative to the site root.
func (p *Page) OutputFile() string {
	return path.Join(strings.TrimPrefix(p.URLPath, "/"), "index.html")
}

// Site is the loaded content tree.
type Site struct {
	Pages []*Page // standalone pages
	Posts []*Page // dated posts, newest first
	tags  map[string][]*Page
}

// Tags returns tag names sorted alphabetically.
func (s *Site) Tags() []string {
	names := make([]string, 0, len(s.tags))
	for name := range s.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PostsByTag returns the posts carrying the tag, newest first.
func (s *Site) PostsByTag(tag string) []*Page {
	return s.tags[tag]
}

// All returns every page and post.
func (s *Site) All() []*Page {
	out := make([]*Page, 0, len(s.Pages)+len(s.Posts))
	out = append(out, s.Pages...)
	out = append(out, s.Posts...)
	return out
}

// LoadOptions control which documents become part of the build.
type LoadOptions struct {
	IncludeDrafts bool
	IncludeFuture bool
	Now           time.Time // zero means time.Now()
}

// Load walks contentDir and builds the Site. Files under postsDir (relative
// to contentDir) are posts; everything else is a standalone page. Only
// .md/.markdown files participate.
func Load(contentDir, postsDir string, opts LoadOptions) (*Site, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	absContent, err := filepath.Abs(contentDir)
	if err != nil {
		return nil, fmt.Errorf("resolve content dir: %w", err)
	}
	if st, err := os.Stat(absContent); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("content dir not found or not a directory: %s", contentDir)
	}

	site := &Site{tags: make(map[string][]*Page)}
	seen := make(map[string]string) // URLPath -> first source file

	walkErr := filepath.WalkDir(absContent, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext != ".md" && ext != ".markdown" {
			return nil
		}

		rel, err := filepath.Rel(absContent, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		page, err := loadPage(p, rel, postsDir)
		if err != nil {
			return err
		}

		if page.IsPost && page.Date.IsZero() {
			return fmt.Errorf("post %s has no date in its frontmatter", rel)
		}
		if page.Draft && !opts.IncludeDrafts {
			return nil
		}
		if page.IsPost && !opts.IncludeFuture && page.Date.After(now) {
			return nil
		}

		if prev, dup := seen[page.URLPath]; dup {
			return fmt.Errorf("output path %s produced by both %s and %s", page.URLPath, prev, rel)
		}
		seen[page.URLPath] = rel

		if page.IsPost {
			site.Posts = append(site.Posts, page)
			for _, tag := range page.Tags {
				site.tags[tag] = append(site.tags[tag], page)
			}
		} else {
			site.Pages = append(site.Pages, page)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	// Newest first; slug breaks date ties so output order is deterministic.
	sort.Slice(site.Posts, func(i, j int) bool {
		if !site.Posts[i].Date.Equal(site.Posts[j].Date) {
			return site.Posts[i].Date.After(site.Posts[j].Date)
		}
		return site.Posts[i].Slug < site.Posts[j].Slug
	})
	for _, posts := range site.tags {
		sort.Slice(posts, func(i, j int) bool {
			if !posts[i].Date.Equal(posts[j].Date) {
				return posts[i].Date.After(posts[j].Date)
			}
			return posts[i].Slug < posts[j].Slug
		})
	}
	sort.Slice(site.Pages, func(i, j int) bool { return site.Pages[i].URLPath < site.Pages[j].URLPath })

	return site, nil
}

func loadPage(absPath, rel, postsDir string) (*Page, error) {
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}

	meta, body, _, _, err := frontmatter.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	md, err := frontmatter.Decode(meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}

	base := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	isPost := postsDir != "" && (rel == postsDir || strings.HasPrefix(rel, postsDir+"/"))

	slug := md.Slug
	if slug == "" {
		slug = Slugify(base)
	}
	title := md.Title
	if title == "" {
		title = TitleFromFilename(base)
	}

	page := &Page{
		SourcePath: absPath,
		RelPath:    rel,
		Slug:       slug,
		Title:      title,
		Date:       md.Date,
		Tags:       md.Tags,
		Summary:    md.Summary,
		Draft:      md.Draft,
		Body:       body,
		IsPost:     isPost,
	}
	page.URLPath = urlPathFor(rel, slug, postsDir, isPost)
	return page, nil
}

func urlPathFor(rel, slug, postsDir string, isPost bool) string {
	if isPost {
		return "/" + path.Join(postsDir, slug) + "/"
	}
	dir := path.Dir(rel)
	base := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	if base == "index" || base == "_index" {
		if dir == "." {
			return "/"
		}
		return "/" + dir + "/"
	}
	if dir == "." {
		return "/" + slug + "/"
	}
	return "/" + path.Join(dir, slug) + "/"
}
