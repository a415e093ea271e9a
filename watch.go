package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce coalesces the burst of fsnotify events an editor save
// produces into one reload.
const reloadDebounce = 500 * time.Millisecond

// DictWatcher watches the dictionary directory and requests a reload
// whenever a *.zc file changes.
type DictWatcher struct {
	log    *zap.SugaredLogger
	fsw    *fsnotify.Watcher
	notify func()
}

// NewDictWatcher starts watching dir. notify is called (debounced, from
// the watcher goroutine) after dictionary files change; it must be safe
// to call from another goroutine, which Multiplexer.Reload is.
func NewDictWatcher(dir string, notify func(), log *zap.SugaredLogger) (*DictWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &DictWatcher{log: log, fsw: fsw, notify: notify}, nil
}

// Run delivers debounced reload requests until ctx is cancelled.
func (w *DictWatcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != ".zc" {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debugf("dictionary change: %s (%s)", ev.Name, ev.Op)
			pending = time.After(reloadDebounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("dictionary watcher: %v", err)

		case <-pending:
			pending = nil
			w.notify()
		}
	}
}
