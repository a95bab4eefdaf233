package core

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// editors often write a file in several steps, wait for them to settle
const reloadDelay = 200 * time.Millisecond

// initSchemaWatcher starts watching the schema file for changes
func (e *Engine) initSchemaWatcher() error {
	// no schema watching in production
	if e.conf.Production || !e.conf.WatchSchema || e.conf.SchemaFile == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// the directory is watched since editors replace files by renaming
	path := filepath.Clean(e.conf.SchemaFile)
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close() //nolint:errcheck
		return err
	}

	go func() {
		e.startSchemaWatcher(w, path)
	}()
	return nil
}

// startSchemaWatcher reloads the engine whenever path is written or replaced
func (e *Engine) startSchemaWatcher(w *fsnotify.Watcher, path string) {
	defer w.Close() //nolint:errcheck

	var timer <-chan time.Time

	for {
		select {
		case <-e.done:
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer = time.After(reloadDelay)
			}

		case <-timer:
			timer = nil
			e.log.Info("schema file change detected. reloading...", zap.String("file", path))
			if err := e.ReloadFile(); err != nil {
				e.log.Error("schema reload failed", zap.Error(err))
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			e.log.Warn("schema watcher", zap.Error(err))
		}
	}
}
