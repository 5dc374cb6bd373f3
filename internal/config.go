package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mimir/internal/defrag"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Store     StoreConfig       `yaml:"store"`
	Markdown  MarkdownConfig    `yaml:"markdown"`
	Embedding EmbeddingConfig   `yaml:"embedding"`
	Defrag    DefragConfig      `yaml:"defrag"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	return c.Defrag.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// StoreConfig holds the durable-storage paths. SnapshotPath and
// AccessSnapshotPath are Parquet files; LegacyPath is an optional
// single-file SQLite store migrated once when no snapshot exists.
type StoreConfig struct {
	SnapshotPath       string `yaml:"snapshot_path"`
	AccessSnapshotPath string `yaml:"access_snapshot_path"`
	LegacyPath         string `yaml:"legacy_path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SnapshotPath, validation.Required),
		validation.Field(&c.AccessSnapshotPath, validation.Required),
	)
}

// MarkdownConfig holds the markdown round-trip settings: the import/seed
// directory (watched when Watch is set) and the export target.
type MarkdownConfig struct {
	Dir       string `yaml:"dir"`
	Watch     bool   `yaml:"watch"`
	ExportDir string `yaml:"export_dir"`
}

// EmbeddingConfig holds the embedding service settings. When disabled,
// writes skip vector generation and similarity tools report that no
// embeddings are available.
type EmbeddingConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Model, validation.Required),
	)
}

// DefragConfig holds the analyzer thresholds.
type DefragConfig struct {
	DuplicateThreshold float64 `yaml:"duplicate_threshold"`
	ConflictThreshold  float64 `yaml:"conflict_threshold"`
	FragmentMinGroup   int     `yaml:"fragment_min_group"`
	OrphanMinContent   int     `yaml:"orphan_min_content"`
	ObsoleteDays       int     `yaml:"obsolete_days"`
}

// Validate validates the defrag configuration.
func (c *DefragConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DuplicateThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.ConflictThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.FragmentMinGroup, validation.Min(0)),
		validation.Field(&c.OrphanMinContent, validation.Min(0)),
		validation.Field(&c.ObsoleteDays, validation.Min(0)),
	); err != nil {
		return err
	}
	if c.ConflictThreshold > 0 && c.ConflictThreshold >= c.DuplicateThreshold {
		return fmt.Errorf("defrag: conflict_threshold %.2f must be below duplicate_threshold %.2f",
			c.ConflictThreshold, c.DuplicateThreshold)
	}
	return nil
}

// Options converts the config to analyzer options; zero fields fall back
// to the analyzer defaults.
func (c *DefragConfig) Options() defrag.Options {
	return defrag.Options{
		DuplicateThreshold: c.DuplicateThreshold,
		ConflictThreshold:  c.ConflictThreshold,
		FragmentMinGroup:   c.FragmentMinGroup,
		OrphanMinContent:   c.OrphanMinContent,
		ObsoleteDays:       c.ObsoleteDays,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Store: StoreConfig{
			SnapshotPath:       "./data/knowledge.parquet",
			AccessSnapshotPath: "./data/kb_access.parquet",
		},
		Markdown: MarkdownConfig{
			Dir:       "./markdown",
			ExportDir: "./markdown",
		},
		Embedding: EmbeddingConfig{
			Enabled: true,
			BaseURL: "http://localhost:11434",
			Model:   "nomic-embed-text",
		},
		Defrag: DefragConfig{
			DuplicateThreshold: defrag.DefaultDuplicateThreshold,
			ConflictThreshold:  defrag.DefaultConflictThreshold,
			FragmentMinGroup:   defrag.DefaultFragmentMinGroup,
			OrphanMinContent:   defrag.DefaultOrphanMinContent,
			ObsoleteDays:       defrag.DefaultObsoleteDays,
		},
	}
}
