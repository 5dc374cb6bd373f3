// Package parser turns Markdown files with YAML frontmatter into knowledge
// entries. It is used by the markdown bootstrap, bulk import, and watcher.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/mimir/internal/models"
)

var (
	leadingHeadingRe = regexp.MustCompile(`^#\s+[^\n]*\n+`)
	kbFooterRe       = regexp.MustCompile(`\n+---\s*\n+\*KB Entry:[^*]*\*\s*`)
	trailingRuleRe   = regexp.MustCompile(`\n+---\s*$`)
)

// Parse extracts an Entry from raw Markdown bytes. The file must start with
// a frontmatter block declaring at least id and title; anything else is an
// error so bulk importers can skip and count the file.
func Parse(data []byte) (*models.Entry, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	id, _ := fm["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("parser: missing required field id")
	}
	title, _ := fm["title"].(string)
	if title == "" {
		return nil, fmt.Errorf("parser: missing required field title")
	}
	category, _ := fm["category"].(string)
	if category == "" {
		category = "seed"
	}

	now := time.Now().UTC()
	entry := &models.Entry{
		ID:       id,
		Category: category,
		Title:    title,
		Tags:     stringList(fm["tags"]),
		Content:  cleanBody(body),
		Created:  timeField(fm["created"], now),
		Updated:  timeField(fm["updated"], now),
	}
	if meta, ok := fm["metadata"].(map[string]interface{}); ok && len(meta) > 0 {
		entry.Metadata = meta
	}
	return entry, nil
}

// splitFrontmatter separates the YAML block between leading --- delimiters
// from the Markdown body. A missing or unterminated block is an error here:
// unlike a free-form vault, every stored entry file carries metadata.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, "", fmt.Errorf("parser: no frontmatter block")
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", fmt.Errorf("parser: unterminated frontmatter block")
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, "", fmt.Errorf("parser: invalid frontmatter: %w", err)
	}
	if fm == nil {
		return nil, "", fmt.Errorf("parser: empty frontmatter")
	}
	return fm, body, nil
}

// cleanBody strips the auto-generated leading "# Title" heading and the
// "*KB Entry: ...*" footer that the markdown exporter appends, so an
// export/import round trip does not accrete boilerplate.
func cleanBody(body string) string {
	body = leadingHeadingRe.ReplaceAllString(body, "")
	body = kbFooterRe.ReplaceAllString(body, "")
	body = trailingRuleRe.ReplaceAllString(body, "")
	return strings.TrimSpace(body)
}

func stringList(raw interface{}) []string {
	var out []string
	if items, ok := raw.([]interface{}); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// timeField accepts time.Time or the common string encodings used in
// exported frontmatter; anything unparseable falls back to the default.
func timeField(raw interface{}, def time.Time) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC()
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC()
			}
		}
	}
	return def
}
