// Package frontmatter splits and decodes the YAML metadata block at the top
// of a content document.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Style captures the newline shape needed for stable rewriting. It does not
// attempt to preserve original YAML formatting.
type Style struct {
	Newline            string
	HasTrailingNewline bool
}

// Metadata is the typed view of a document's frontmatter. Unknown keys are
// collected in Extra.
type Metadata struct {
	Title   string
	Date    time.Time
	Slug    string
	Tags    []string
	Summary string
	Draft   bool
	Extra   map[string]any
}

// Split separates YAML frontmatter (`---` delimited) from the Markdown body.
//
// If the document does not start with a frontmatter delimiter, had is false
// and body is the full input.
func Split(content []byte) (meta []byte, body []byte, had bool, style Style, err error) {
	style = detectStyle(content)

	nl := style.Newline
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, style, nil
	}

	start := len(open)
	if bytes.HasPrefix(content[start:], open) {
		// Empty frontmatter block.
		return []byte{}, content[start+len(open):], true, style, nil
	}

	closeSeq := []byte(nl + "---" + nl)
	idx := bytes.Index(content[start:], closeSeq)
	if idx < 0 {
		return nil, nil, false, style, ErrMissingClosingDelimiter
	}

	metaEnd := start + idx + len(nl)
	bodyStart := start + idx + len(closeSeq)
	return content[start:metaEnd], content[bodyStart:], true, style, nil
}

// Join reassembles a document from raw frontmatter and body. With had false
// the body is returned as-is.
func Join(meta []byte, body []byte, had bool, style Style) []byte {
	if !had {
		return body
	}

	nl := style.Newline
	if nl == "" {
		nl = "\n"
	}

	delim := []byte("---" + nl)
	out := make([]byte, 0, 2*len(delim)+len(meta)+len(body))
	out = append(out, delim...)
	out = append(out, meta...)
	out = append(out, delim...)
	out = append(out, body...)
	return out
}

// Decode parses raw YAML frontmatter (without delimiters) into Metadata.
func Decode(meta []byte) (Metadata, error) {
	var raw map[string]any
	if len(meta) > 0 {
		if err := yaml.Unmarshal(meta, &raw); err != nil {
			return Metadata{}, fmt.Errorf("invalid frontmatter yaml: %w", err)
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	var md Metadata
	md.Extra = map[string]any{}

	for key, value := range raw {
		switch key {
		case "title":
			md.Title = asString(value)
		case "date":
			d, err := asTime(value)
			if err != nil {
				return Metadata{}, fmt.Errorf("invalid date %v: %w", value, err)
			}
			md.Date = d
		case "slug":
			md.Slug = asString(value)
		case "summary", "description":
			md.Summary = asString(value)
		case "draft":
			b, ok := value.(bool)
			if !ok {
				return Metadata{}, fmt.Errorf("draft must be a boolean, got %v", value)
			}
			md.Draft = b
		case "tags", "categories":
			tags, err := asStringSlice(value)
			if err != nil {
				return Metadata{}, fmt.Errorf("invalid %s: %w", key, err)
			}
			md.Tags = append(md.Tags, tags...)
		default:
			md.Extra[key] = value
		}
	}

	return md, nil
}

// dateLayouts are accepted frontmatter date formats, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date format %q", t)
	default:
		return time.Time{}, fmt.Errorf("date must be a string or timestamp, got %T", v)
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func asStringSlice(v any) ([]string, error) {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, asString(item))
		}
		return out, nil
	case string:
		return []string{t}, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
}

func detectStyle(content []byte) Style {
	newline := "\n"
	for i := 0; i+1 < len(content); i++ {
		if content[i] == '\r' && content[i+1] == '\n' {
			newline = "\r\n"
			break
		}
		if content[i] == '\n' {
			newline = "\n"
			break
		}
	}

	hasTrailingNewline := len(content) > 0 && content[len(content)-1] == '\n'

	return Style{
		Newline:            newline,
		HasTrailingNewline: hasTrailingNewline,
	}
}
