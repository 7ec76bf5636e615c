package kvstore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/clientboot/internal/logfields"
)

// Change describes a key observed to change in an FSStore.
type Change struct {
	Key     string
	Value   string
	Present bool
}

// Watch calls fn for every change to the given keys (all keys when none are
// given) until ctx is done. Changes made by other processes are included.
func (fs *FSStore) Watch(ctx context.Context, fn func(Change), keys ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(fs.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch store directory %s: %w", fs.dir, err)
	}

	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				key := filepath.Base(event.Name)
				if strings.HasPrefix(key, tempPrefix) || (len(wanted) > 0 && !wanted[key]) {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				value, present, err := fs.Get(ctx, key)
				if err != nil {
					slog.Warn("Failed to read changed key", logfields.Key(key), logfields.Error(err))
					continue
				}
				fn(Change{Key: key, Value: value, Present: present})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Store watcher error", logfields.Error(err))
			}
		}
	}()
	return nil
}
