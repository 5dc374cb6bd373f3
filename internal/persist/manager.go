// Package persist owns the singleton record-store handle and its durable
// lifecycle: bootstrap on first acquire, whole-table Parquet flush after
// every mutation, release at shutdown.
package persist

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/starford/mimir/internal/importer"
	"github.com/starford/mimir/internal/store"
)

// Config holds the durable-storage paths.
type Config struct {
	// SnapshotPath and AccessSnapshotPath are the Parquet files holding the
	// knowledge table and the access log.
	SnapshotPath       string
	AccessSnapshotPath string
	// LegacyPath is an optional single-file SQLite store migrated once when
	// no snapshot exists yet.
	LegacyPath string
	// MarkdownDir seeds a fresh store from frontmatter files when neither a
	// snapshot nor a legacy store exists.
	MarkdownDir string
}

// Manager provides exactly one live store handle per process lifetime.
//
// The durable snapshot is last-writer-wins: running two processes against
// the same snapshot files is unsupported and will corrupt the logical view.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	logger *slog.Logger
	db     *store.DB
}

// NewManager creates a manager. No I/O happens until the first Acquire.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger}
}

// Acquire returns the live store handle, bootstrapping it on first call.
// Subsequent calls return the same handle without re-reading durable files;
// the in-memory store is authoritative once loaded.
func (m *Manager) Acquire(ctx context.Context) (*store.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return m.db, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db, err := store.Open()
	if err != nil {
		return nil, err
	}

	if err := m.bootstrap(db); err != nil {
		db.Close()
		return nil, err
	}

	// The FTS index is rebuilt after every load; failure is tolerated only
	// while the table is empty.
	if err := db.RebuildFTS(); err != nil {
		if n, cntErr := db.Count(); cntErr != nil || n > 0 {
			db.Close()
			return nil, fmt.Errorf("persist: rebuild fts: %w", err)
		}
		m.logger.Debug("fts rebuild skipped on empty store", slog.String("error", err.Error()))
	}

	m.db = db
	return m.db, nil
}

// bootstrap populates a fresh store from the best available source.
// Tried in order, first success wins; a present-but-unreadable source is
// fatal rather than a silent fall-through to an empty store.
func (m *Manager) bootstrap(db *store.DB) error {
	switch {
	case fileExists(m.cfg.SnapshotPath):
		n, err := m.loadSnapshot(db)
		if err != nil {
			return fmt.Errorf("persist: load snapshot %s: %w", m.cfg.SnapshotPath, err)
		}
		m.logger.Info("loaded snapshot", slog.String("path", m.cfg.SnapshotPath), slog.Int("entries", n))

	case m.cfg.LegacyPath != "" && fileExists(m.cfg.LegacyPath):
		n, err := migrateLegacy(db, m.cfg.LegacyPath)
		if err != nil {
			return fmt.Errorf("persist: migrate legacy store %s: %w", m.cfg.LegacyPath, err)
		}
		// One-time migration: the snapshot must exist before we return.
		if err := m.flushLocked(db); err != nil {
			return fmt.Errorf("persist: snapshot after migration: %w", err)
		}
		m.logger.Info("migrated legacy store",
			slog.String("path", m.cfg.LegacyPath), slog.Int("entries", n))

	case m.cfg.MarkdownDir != "" && dirExists(m.cfg.MarkdownDir):
		imported, skipped, err := importer.ImportDir(db, m.cfg.MarkdownDir)
		if err != nil {
			return fmt.Errorf("persist: markdown bootstrap: %w", err)
		}
		if imported > 0 {
			if err := m.flushLocked(db); err != nil {
				return fmt.Errorf("persist: snapshot after bootstrap: %w", err)
			}
		}
		m.logger.Info("bootstrapped from markdown",
			slog.String("dir", m.cfg.MarkdownDir),
			slog.Int("imported", imported), slog.Int("skipped", skipped))

	default:
		m.logger.Info("starting with empty store")
	}

	// The access log snapshot loads independently of the entry source.
	if fileExists(m.cfg.AccessSnapshotPath) {
		if err := m.loadAccessSnapshot(db); err != nil {
			return fmt.Errorf("persist: load access snapshot %s: %w", m.cfg.AccessSnapshotPath, err)
		}
	}
	return nil
}

// Flush serializes the full knowledge and access-log tables to the Parquet
// snapshots. Whole-table overwrite: each file is written to a temp path and
// renamed, so the old snapshot stays valid until the new one is complete.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	return m.flushLocked(m.db)
}

// Release flushes and drops the handle; the next Acquire re-bootstraps.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	flushErr := m.flushLocked(m.db)
	closeErr := m.db.Close()
	m.db = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (m *Manager) flushLocked(db *store.DB) error {
	entries, err := db.All()
	if err != nil {
		return err
	}
	if err := writeEntrySnapshot(m.cfg.SnapshotPath, entries); err != nil {
		return fmt.Errorf("persist: write snapshot: %w", err)
	}
	records, err := db.AccessLog()
	if err != nil {
		return err
	}
	if err := writeAccessSnapshot(m.cfg.AccessSnapshotPath, records); err != nil {
		return fmt.Errorf("persist: write access snapshot: %w", err)
	}
	return nil
}

func (m *Manager) loadSnapshot(db *store.DB) (int, error) {
	entries, err := readEntrySnapshot(m.cfg.SnapshotPath)
	if err != nil {
		return 0, err
	}
	for i := range entries {
		if err := db.Upsert(&entries[i]); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

func (m *Manager) loadAccessSnapshot(db *store.DB) error {
	records, err := readAccessSnapshot(m.cfg.AccessSnapshotPath)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := db.InsertAccess(rec); err != nil {
			return err
		}
	}
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
