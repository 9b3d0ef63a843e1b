package accessfile

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/taskbasket/taskbasket/internal/access"
	"github.com/taskbasket/taskbasket/internal/debug"
)

// Watch reloads the manifest whenever it changes on disk and hands the new
// entries to apply. It blocks until ctx is cancelled. Editors typically
// replace files via rename, so the watch is on the directory, filtered to
// the manifest name.
func Watch(ctx context.Context, path string, apply func([]access.AccessEntry)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	name := filepath.Base(path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			entries, err := Load(path)
			if err != nil {
				// Keep the previous grants on a bad edit.
				debug.Logf("accessfile: reload failed: %v\n", err)
				continue
			}
			apply(entries)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			debug.Logf("accessfile: watch error: %v\n", err)
		}
	}
}
