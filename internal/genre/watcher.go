package genre

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDelay lets editors finish atomic rename-and-write sequences.
const reloadDelay = 100 * time.Millisecond

// Watcher reloads a Classifier's rule table when its YAML file changes.
type Watcher struct {
	path       string
	classifier *Classifier
	logger     *zap.Logger
	watcher    *fsnotify.Watcher
}

// NewWatcher watches the directory holding path so renames are observed.
func NewWatcher(path string, classifier *Classifier, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("genre: failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("genre: failed to watch rule table: %w", err)
	}

	return &Watcher{
		path:       filepath.Clean(path),
		classifier: classifier,
		logger:     logger,
		watcher:    fw,
	}, nil
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			time.Sleep(reloadDelay)
			w.Reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rule table watcher error", zap.Error(err))
		}
	}
}

// Reload parses the file and swaps it in. The active table is kept when the
// file is unreadable or invalid.
func (w *Watcher) Reload() bool {
	table, err := LoadRuleTable(w.path)
	if err != nil {
		w.logger.Warn("rule table reload rejected", zap.String("path", w.path), zap.Error(err))
		return false
	}

	w.classifier.Swap(table)
	w.logger.Info("rule table reloaded",
		zap.String("path", w.path),
		zap.Int("rules", len(table.Rules)),
		zap.Int("artists", len(table.Artists)))
	return true
}
