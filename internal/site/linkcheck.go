package site

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"codeberg.org/halvard/stanza/internal/logfields"
)

// stageVerify parses every generated HTML page and checks that site-internal
// references resolve inside the staged tree. Broken links degrade the build
// to a warning; they never fail it.
func stageVerify(ctx context.Context, bs *BuildState) error {
	broken := 0
	for _, w := range bs.written {
		if ctx.Err() != nil {
			return newCanceledStageError(StageVerify, ctx.Err())
		}

		refs, err := extractRefs(w.File)
		if err != nil {
			return newWarnStageError(StageVerify, fmt.Errorf("parse %s: %w", w.File, err))
		}
		for _, ref := range refs {
			target, internal := internalTarget(ref)
			if !internal {
				continue
			}
			if !existsInStaging(bs.StagingDir, target) {
				broken++
				slog.Warn("Broken internal link", logfields.Path(w.URLPath), logfields.URL(ref))
			}
		}
	}
	if broken > 0 {
		return newWarnStageError(StageVerify, fmt.Errorf("%d broken internal link(s)", broken))
	}
	return nil
}

// extractRefs returns href/src attribute values from anchors and images.
func extractRefs(file string) ([]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, err
	}

	var refs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			var attr string
			switch n.Data {
			case "a", "link":
				attr = "href"
			case "img", "script":
				attr = "src"
			}
			if attr != "" {
				for _, a := range n.Attr {
					if a.Key == attr && a.Val != "" {
						refs = append(refs, a.Val)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return refs, nil
}

// internalTarget reports whether ref points inside the site and returns its
// root-relative path. Only absolute-path references are considered internal;
// scheme-qualified, fragment-only and relative references are skipped.
func internalTarget(ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" || u.Host != "" {
		return "", false
	}
	if u.Path == "" || !strings.HasPrefix(u.Path, "/") {
		return "", false
	}
	return u.Path, true
}

func existsInStaging(staging, target string) bool {
	rel := filepath.FromSlash(strings.TrimPrefix(target, "/"))
	st, err := os.Stat(filepath.Join(staging, rel))
	if err != nil {
		return false
	}
	if !st.IsDir() {
		return true
	}
	_, err = os.Stat(filepath.Join(staging, rel, "index.html"))
	return err == nil
}
