package locale

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDelay = 100 * time.Millisecond

// Watch reloads the override directory whenever one of its YAML files changes,
// until ctx is cancelled. cb (if non-nil) runs after each successful reload.
func (c *Catalog) Watch(ctx context.Context, dir string, logger *slog.Logger, cb func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("locale watcher: started", slog.String("dir", dir))

	// Editors often write a file in several steps; collapse them into one reload.
	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(reloadDelay)
			timerCh = timer.C
		} else {
			timer.Reset(reloadDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("locale watcher: stopped")
			return nil

		case <-timerCh:
			if err := c.LoadDir(dir); err != nil {
				logger.Warn("locale watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			logger.Debug("locale watcher: reloaded", slog.String("dir", dir))
			if cb != nil {
				cb()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(filepath.Base(ev.Name), ".yaml") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("locale watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
