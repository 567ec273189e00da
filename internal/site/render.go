package site

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/halvard/stanza/internal/content"
)

//go:embed layouts/*.html
var defaultLayouts embed.FS

// layoutNames are the templates a layout set must provide. base.html is the
// document skeleton; the others define the "main" block for one page kind.
var layoutNames = []string{"base.html", "page.html", "post.html", "list.html", "index.html"}

type siteData struct {
	Title       string
	BaseURL     string
	Description string
	Author      string
	Language    string
}

type postItem struct {
	Title     string
	Permalink string
	Date      time.Time
	Summary   string
	Tags      []string
}

// pageData is the template context for every rendered page.
type pageData struct {
	Site      siteData
	Title     string
	Date      time.Time
	Tags      []string
	Summary   string
	Content   template.HTML
	Permalink string
	Posts     []postItem // index and list pages
	Tag       string     // tag list pages
}

var layoutFuncs = template.FuncMap{
	"dateFormat": func(layout string, t time.Time) string { return t.Format(layout) },
	"tagURL":     func(tag string) string { return "/tags/" + content.Slugify(tag) + "/" },
}

// loadLayouts reads a layout source: embedded defaults, with any file of the
// same name in the user's layouts dir taking precedence.
func (b *Builder) loadLayouts() (map[string]string, error) {
	sources := make(map[string]string, len(layoutNames))
	for _, name := range layoutNames {
		data, err := defaultLayouts.ReadFile("layouts/" + name)
		if err != nil {
			return nil, fmt.Errorf("embedded layout %s: %w", name, err)
		}
		sources[name] = string(data)
	}

	userDir := filepath.Join(b.sourceDir, b.cfg.Content.LayoutsDir)
	for _, name := range layoutNames {
		p := filepath.Join(userDir, name)
		if data, err := os.ReadFile(p); err == nil {
			sources[name] = string(data)
		}
	}
	return sources, nil
}

// layoutSet compiles base.html plus one page-kind layout into an executable
// template.
func layoutSet(sources map[string]string, kind string) (*template.Template, error) {
	t := template.New("base.html").Funcs(layoutFuncs)
	t, err := t.Parse(sources["base.html"])
	if err != nil {
		return nil, fmt.Errorf("parse base.html: %w", err)
	}
	if _, err := t.New(kind).Parse(sources[kind]); err != nil {
		return nil, fmt.Errorf("parse %s: %w", kind, err)
	}
	return t, nil
}

func stageRender(ctx context.Context, bs *BuildState) error {
	b := bs.Builder
	sources, err := b.loadLayouts()
	if err != nil {
		return newFatalStageError(StageRender, err)
	}

	layouts := make(map[string]*template.Template, len(layoutNames))
	for _, kind := range []string{"page.html", "post.html", "list.html", "index.html"} {
		t, err := layoutSet(sources, kind)
		if err != nil {
			return newFatalStageError(StageRender, err)
		}
		layouts[kind] = t
	}

	sd := siteData{
		Title:       b.cfg.Site.Title,
		BaseURL:     b.cfg.Site.BaseURL,
		Description: b.cfg.Site.Description,
		Author:      b.cfg.Site.Author,
		Language:    b.cfg.Site.Language,
	}

	items := make([]postItem, 0, len(bs.Site.Posts))
	for _, p := range bs.Site.Posts {
		items = append(items, postItem{
			Title:     p.Title,
			Permalink: p.URLPath,
			Date:      p.Date,
			Summary:   p.Summary,
			Tags:      p.Tags,
		})
	}

	hasHome := false
	for _, page := range bs.Site.All() {
		if ctx.Err() != nil {
			return newCanceledStageError(StageRender, ctx.Err())
		}
		if page.URLPath == "/" {
			hasHome = true
		}

		html, err := b.renderer.Render(page.Body)
		if err != nil {
			return newFatalStageError(StageRender, fmt.Errorf("%s: %w", page.RelPath, err))
		}

		kind := "page.html"
		switch {
		case page.IsPost:
			kind = "post.html"
		case page.URLPath == "/":
			kind = "index.html"
		}
		data := pageData{
			Site:      sd,
			Title:     page.Title,
			Date:      page.Date,
			Tags:      page.Tags,
			Summary:   page.Summary,
			Content:   template.HTML(html),
			Permalink: page.URLPath,
		}
		if page.URLPath == "/" {
			// A content-authored home page still gets the post list.
			data.Posts = items
		}
		if err := bs.writePage(layouts[kind], data, page.URLPath, page.Date); err != nil {
			return newFatalStageError(StageRender, err)
		}
	}

	if !hasHome {
		data := pageData{Site: sd, Title: sd.Title, Summary: sd.Description, Posts: items}
		if err := bs.writePage(layouts["index.html"], data, "/", time.Time{}); err != nil {
			return newFatalStageError(StageRender, err)
		}
	}

	for _, tag := range bs.Site.Tags() {
		posts := bs.Site.PostsByTag(tag)
		tagItems := make([]postItem, 0, len(posts))
		for _, p := range posts {
			tagItems = append(tagItems, postItem{
				Title:     p.Title,
				Permalink: p.URLPath,
				Date:      p.Date,
				Summary:   p.Summary,
				Tags:      p.Tags,
			})
		}
		data := pageData{Site: sd, Title: tag, Tag: tag, Posts: tagItems}
		urlPath := "/tags/" + content.Slugify(tag) + "/"
		if err := bs.writePage(layouts["list.html"], data, urlPath, time.Time{}); err != nil {
			return newFatalStageError(StageRender, err)
		}
	}

	bs.Report.RenderedPages = len(bs.written)
	return nil
}

// writePage executes the layout and writes the result under the staging dir.
func (bs *BuildState) writePage(t *template.Template, data pageData, urlPath string, lastMod time.Time) error {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base.html", data); err != nil {
		return fmt.Errorf("render %s: %w", urlPath, err)
	}

	rel := filepath.Join(filepath.FromSlash(urlPath), "index.html")
	dst := filepath.Join(bs.StagingDir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	if err := os.WriteFile(dst, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}

	bs.written = append(bs.written, writtenPage{URLPath: urlPath, File: dst, LastMod: lastMod})
	return nil
}
