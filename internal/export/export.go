// Package export writes knowledge entries as markdown files with YAML
// frontmatter, the counterpart of the importer and the markdown bootstrap.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/mimir/internal/models"
)

// frontmatter is the YAML header of an exported file. Field order matters
// for readability, hence a struct instead of a map.
type frontmatter struct {
	ID       string                 `yaml:"id"`
	Category string                 `yaml:"category"`
	Title    string                 `yaml:"title"`
	Tags     []string               `yaml:"tags"`
	Created  string                 `yaml:"created"`
	Updated  string                 `yaml:"updated"`
	Metadata map[string]interface{} `yaml:"metadata,omitempty"`
}

// Write exports every entry as <dir>/<category>/<id>.md and returns the
// number of files written.
func Write(entries []models.Entry, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}

	written := 0
	for i := range entries {
		if err := writeEntry(&entries[i], dir); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func writeEntry(e *models.Entry, dir string) error {
	catDir := filepath.Join(dir, e.Category)
	if err := os.MkdirAll(catDir, 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	data, err := render(e)
	if err != nil {
		return err
	}

	path := filepath.Join(catDir, e.ID+".md")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}

func render(e *models.Entry) ([]byte, error) {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	fm := frontmatter{
		ID:       e.ID,
		Category: e.Category,
		Title:    e.Title,
		Tags:     tags,
		Created:  e.Created.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Updated:  e.Updated.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Metadata: e.Metadata,
	}
	head, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, fmt.Errorf("export: encode frontmatter for %s: %w", e.ID, err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n\n")

	// Keep the body verbatim when it already opens with its own heading.
	if strings.HasPrefix(strings.TrimSpace(e.Content), "# "+e.Title) {
		b.WriteString(e.Content)
	} else {
		fmt.Fprintf(&b, "# %s\n\n%s", e.Title, e.Content)
	}

	fmt.Fprintf(&b, "\n\n---\n\n*KB Entry: `%s` | Category: %s | Updated: %s*\n",
		e.ID, e.Category, e.Updated.UTC().Format("2006-01-02"))
	return []byte(b.String()), nil
}
