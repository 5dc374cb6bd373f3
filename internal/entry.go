// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/mimir/internal/defrag"
	"github.com/starford/mimir/internal/embedding"
	"github.com/starford/mimir/internal/export"
	"github.com/starford/mimir/internal/importer"
	"github.com/starford/mimir/internal/kbservice"
	"github.com/starford/mimir/internal/mcpserver"
	"github.com/starford/mimir/internal/persist"
	"github.com/starford/mimir/internal/store"
)

// env bundles the initialized pieces every command shares.
type env struct {
	cfg    *Config
	logger *slog.Logger
	mgr    *persist.Manager
	db     *store.DB
	svc    *kbservice.Service
}

// setup loads the store and builds the service stack. Callers must Release
// the manager when done.
//
// The logger writes to stderr: stdout belongs to the MCP stdio transport.
func setup(ctx context.Context, cfg *Config) (*env, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	mgr := persist.NewManager(persist.Config{
		SnapshotPath:       cfg.Store.SnapshotPath,
		AccessSnapshotPath: cfg.Store.AccessSnapshotPath,
		LegacyPath:         cfg.Store.LegacyPath,
		MarkdownDir:        cfg.Markdown.Dir,
	}, logger)

	db, err := mgr.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire store: %w", err)
	}

	var embedder kbservice.Embedder
	if cfg.Embedding.Enabled {
		embedder = embedding.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.Model)
	}

	svc := kbservice.New(db, mgr, embedder, logger)
	return &env{cfg: cfg, logger: logger, mgr: mgr, db: db, svc: svc}, nil
}

// Run starts the MCP stdio server with the given options and blocks until
// the client disconnects or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, cfg)
	if err != nil {
		return err
	}

	e.logger.Info("configuration loaded",
		slog.String("snapshot_path", cfg.Store.SnapshotPath),
		slog.String("markdown_dir", cfg.Markdown.Dir),
		slog.Bool("embedding_enabled", cfg.Embedding.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	srv := mcpserver.New(e.svc, e.db, e.mgr, cfg.Defrag.Options(),
		cfg.Markdown.ExportDir, cfg.Markdown.Dir, e.logger)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e.logger.Info("mcp server starting on stdio")
		if err := srv.Listen(gCtx); err != nil && gCtx.Err() == nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	})

	if (cfg.Markdown.Watch || app.watch) && cfg.Markdown.Dir != "" {
		g.Go(func() error {
			return importer.Watch(gCtx, e.db, e.mgr, cfg.Markdown.Dir, e.logger)
		})
	}

	runErr := g.Wait()
	if err := e.mgr.Release(); err != nil {
		e.logger.Error("release failed", slog.String("error", err.Error()))
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		e.logger.Error("application error", slog.String("error", runErr.Error()))
		return runErr
	}
	e.logger.Info("server stopped")
	return nil
}

// Defrag runs the selected analyzer checks and writes the JSON report to w,
// or to exportPath when given. An empty selection means all checks.
func Defrag(ctx context.Context, cfg *Config, sel defrag.Selection, exportPath string, w io.Writer) error {
	e, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.mgr.Release()

	if !sel.Any() {
		sel = defrag.All()
	}
	report, err := defrag.New(e.db, cfg.Defrag.Options()).RunSelected(sel)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if exportPath != "" {
		return os.WriteFile(exportPath, append(out, '\n'), 0o644)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// Export writes every entry as markdown under dir (the configured export
// directory when dir is empty).
func Export(ctx context.Context, cfg *Config, dir string, w io.Writer) error {
	e, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.mgr.Release()

	if dir == "" {
		dir = cfg.Markdown.ExportDir
	}
	if dir == "" {
		return fmt.Errorf("no export directory configured")
	}

	entries, err := e.db.All()
	if err != nil {
		return err
	}
	files, err := export.Write(entries, dir)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "exported %d entries to %s\n", files, dir)
	return err
}

// Import loads markdown files from dir (the configured markdown directory
// when dir is empty) and persists the result.
func Import(ctx context.Context, cfg *Config, dir string, w io.Writer) error {
	e, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.mgr.Release()

	if dir == "" {
		dir = cfg.Markdown.Dir
	}
	if dir == "" {
		return fmt.Errorf("no import directory configured")
	}

	imported, skipped, err := importer.ImportDir(e.db, dir)
	if err != nil {
		return err
	}
	if imported > 0 {
		if err := e.mgr.Flush(); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "imported %d entries from %s (%d skipped)\n", imported, dir, skipped)
	return err
}

// Embed backfills embedding vectors for the given ids, or for every entry
// missing one; regenerate recomputes existing vectors too.
func Embed(ctx context.Context, cfg *Config, ids []string, regenerate bool, w io.Writer) error {
	e, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.mgr.Release()

	updated, err := e.svc.GenerateEmbeddings(ctx, ids, regenerate)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "updated %d embeddings\n", updated)
	return err
}
