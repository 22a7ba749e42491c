package mmapchan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WaitForFile blocks until a file exists at path or ctx ends. A reader
// started before its writer uses it so that the writer creates and sizes the
// channel file.
func WaitForFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	// Checked after Add so a file created in between is not missed.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	want := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watch %s: watcher closed", dir)
			}
			if filepath.Clean(event.Name) != want {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watch %s: watcher closed", dir)
			}
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
}
