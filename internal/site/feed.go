package site

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// rssFeed is the RSS 2.0 document written to /feed.xml.
type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language,omitempty"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description,omitempty"`
}

func stageFeed(_ context.Context, bs *BuildState) error {
	cfg := bs.Builder.cfg

	posts := bs.Site.Posts
	if max := cfg.Build.FeedSize; max > 0 && len(posts) > max {
		posts = posts[:max]
	}

	channel := rssChannel{
		Title:       cfg.Site.Title,
		Link:        cfg.Site.BaseURL,
		Description: cfg.Site.Description,
		Language:    cfg.Site.Language,
	}
	for _, p := range posts {
		channel.Items = append(channel.Items, rssItem{
			Title:       p.Title,
			Link:        absoluteURL(cfg.Site.BaseURL, p.URLPath),
			GUID:        absoluteURL(cfg.Site.BaseURL, p.URLPath),
			PubDate:     p.Date.Format(time.RFC1123Z),
			Description: p.Summary,
		})
	}

	data, err := xml.MarshalIndent(rssFeed{Version: "2.0", Channel: channel}, "", "  ")
	if err != nil {
		return newFatalStageError(StageFeed, fmt.Errorf("marshal feed: %w", err))
	}
	out := append([]byte(xml.Header), data...)

	if err := os.WriteFile(filepath.Join(bs.StagingDir, "feed.xml"), out, 0o644); err != nil {
		return newFatalStageError(StageFeed, fmt.Errorf("write feed: %w", err))
	}
	return nil
}

// absoluteURL joins the site base URL and a site-relative path. With no base
// URL configured the relative path is used as-is.
func absoluteURL(baseURL, urlPath string) string {
	if baseURL == "" {
		return urlPath
	}
	return strings.TrimSuffix(baseURL, "/") + urlPath
}
