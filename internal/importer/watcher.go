package importer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/mimir/internal/checksum"
	"github.com/starford/mimir/internal/store"
)

// Flusher persists the store after watcher-driven writes.
type Flusher interface {
	Flush() error
}

// Watch starts an fsnotify watcher on a markdown tree and imports changed
// .md files until ctx is cancelled. Writes are debounced per path so an
// editor's save sequence triggers one import, and the store is flushed
// after each batch.
//
// New directories created at runtime are added to the watch list. File
// removals do not delete entries; the store stays authoritative.
func Watch(ctx context.Context, db *store.DB, flusher Flusher, root string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	const debounce = 200 * time.Millisecond
	pending := make(map[string]struct{})
	// Editors fire several events per save; remembering the last imported
	// checksum per path avoids redundant upserts and snapshot flushes.
	lastSum := make(map[string]string)
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	schedule := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			imported := 0
			for path := range pending {
				if sum, sumErr := fileChecksum(path); sumErr == nil && sum == lastSum[path] {
					continue
				}
				ok, sum, impErr := importFile(db, path)
				if impErr != nil {
					logger.Warn("watcher: import failed",
						slog.String("path", path), slog.String("error", impErr.Error()))
					continue
				}
				if ok {
					lastSum[path] = sum
					imported++
					logger.Debug("watcher: imported", slog.String("path", path))
				}
			}
			pending = make(map[string]struct{})
			if imported > 0 {
				if flushErr := flusher.Flush(); flushErr != nil {
					logger.Error("watcher: flush failed", slog.String("error", flushErr.Error()))
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				pending[ev.Name] = struct{}{}
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func fileChecksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return checksum.Sum(data), nil
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
