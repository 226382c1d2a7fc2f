package socket

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"jotter/internal/jot/service"
	"jotter/pkg/logger"
	"jotter/store"
)

// DirNotifier turns filesystem events on jot files into wake-up notifications, so edits made
// by other processes reach watchers without waiting for the next poll.
type DirNotifier struct {
	watcher  *fsnotify.Watcher
	notifier service.Notifier
}

func NewDirNotifier(dir string, notifier service.Notifier) (*DirNotifier, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}
	return &DirNotifier{watcher: watcher, notifier: notifier}, nil
}

// Run forwards events until ctx is cancelled and then closes the fsnotify watcher.
func (d *DirNotifier) Run(ctx context.Context) {
	defer d.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if token, ok := store.TokenFromFileName(filepath.Base(event.Name)); ok {
				d.notifier.Notify(token)
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			logger.Sugar.Warnf("Watcher error: %v", err)
		}
	}
}
