package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/mimir/internal"
	"github.com/starford/mimir/internal/defrag"
	pkgconfig "github.com/starford/mimir/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfPresent(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}
	if cmd.Bool("watch") {
		opts = append(opts, internal.WithWatcher())
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

// configFlag returns a fresh flag instance per command; cli flags carry
// parse state and must not be shared.
func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "mimir",
		Usage:  "Personal knowledge base with full-text and semantic search over an MCP stdio interface",
		Action: serve,
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Watch the markdown directory and import changed files",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "defrag",
				Usage: "Analyze the knowledge base for duplicates, conflicts, fragmentation, orphans, and obsolete entries",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "duplicates", Usage: "Check for near-duplicate pairs"},
					&cli.BoolFlag{Name: "conflicts", Usage: "Check for potentially conflicting pairs"},
					&cli.BoolFlag{Name: "fragmentation", Usage: "Check for topics spread across many entries"},
					&cli.BoolFlag{Name: "orphans", Usage: "Check for untagged or near-empty entries"},
					&cli.BoolFlag{Name: "obsolete", Usage: "Check for entries not updated in a year"},
					&cli.StringFlag{Name: "export", Usage: "Write the JSON report to a file instead of stdout"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					sel := defrag.Selection{
						Duplicates:    cmd.Bool("duplicates"),
						Conflicts:     cmd.Bool("conflicts"),
						Fragmentation: cmd.Bool("fragmentation"),
						Orphans:       cmd.Bool("orphans"),
						Obsolete:      cmd.Bool("obsolete"),
					}
					return internal.Defrag(ctx, cfg, sel, cmd.String("export"), os.Stdout)
				},
			},
			{
				Name:  "export",
				Usage: "Export every entry as markdown files with YAML frontmatter",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "dir", Usage: "Target directory (default from configuration)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.Export(ctx, cfg, cmd.String("dir"), os.Stdout)
				},
			},
			{
				Name:  "import",
				Usage: "Import markdown files with YAML frontmatter from a directory tree",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "dir", Usage: "Source directory (default from configuration)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.Import(ctx, cfg, cmd.String("dir"), os.Stdout)
				},
			},
			{
				Name:  "embed",
				Usage: "Backfill embedding vectors for entries missing one",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringSliceFlag{Name: "id", Usage: "Specific entry ids (repeatable)"},
					&cli.BoolFlag{Name: "regenerate", Usage: "Recompute vectors that already exist"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.Embed(ctx, cfg, cmd.StringSlice("id"), cmd.Bool("regenerate"), os.Stdout)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
