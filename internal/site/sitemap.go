package site

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func stageSitemap(_ context.Context, bs *BuildState) error {
	cfg := bs.Builder.cfg

	set := sitemapURLSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, w := range bs.written {
		u := sitemapURL{Loc: absoluteURL(cfg.Site.BaseURL, w.URLPath)}
		if !w.LastMod.IsZero() {
			u.LastMod = w.LastMod.Format("2006-01-02")
		}
		set.URLs = append(set.URLs, u)
	}
	sort.Slice(set.URLs, func(i, j int) bool { return set.URLs[i].Loc < set.URLs[j].Loc })

	data, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return newFatalStageError(StageSitemap, fmt.Errorf("marshal sitemap: %w", err))
	}
	out := append([]byte(xml.Header), data...)

	if err := os.WriteFile(filepath.Join(bs.StagingDir, "sitemap.xml"), out, 0o644); err != nil {
		return newFatalStageError(StageSitemap, fmt.Errorf("write sitemap: %w", err))
	}
	return nil
}
