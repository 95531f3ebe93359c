package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FileAdapter reads and writes spec payloads as files in a directory, one
// file per key. It implements [Watcher]: edits to a key's file (including
// atomic rename-over, the common editor and configmap update pattern) are
// pushed to subscribers.
type FileAdapter struct {
	dir string
}

// NewFileAdapter creates an adapter rooted at dir, creating it if needed.
func NewFileAdapter(dir string) (*FileAdapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create adapter dir: %w", err)
	}
	return &FileAdapter{dir: dir}, nil
}

// path maps a key to a file name. Keys contain slashes; only the last
// element names the file.
func (a *FileAdapter) path(key string) string {
	return filepath.Join(a.dir, filepath.Base(key)+".json")
}

// Get returns the stored payload for key, or ErrNotFound.
func (a *FileAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := os.ReadFile(a.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return value, nil
}

// Set writes the payload for key via a temp file and rename, so concurrent
// readers never observe a partial write.
func (a *FileAdapter) Set(ctx context.Context, key string, value []byte) error {
	target := a.path(key)
	tmp, err := os.CreateTemp(a.dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Shutdown is a no-op; the adapter holds no open resources between calls.
func (a *FileAdapter) Shutdown(ctx context.Context) error {
	return nil
}

// Watch invokes fn with the file contents each time the key's file is
// written, created, or renamed into place. Blocks until ctx is cancelled or
// the watcher fails.
func (a *FileAdapter) Watch(ctx context.Context, key string, fn func(value []byte)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: rename-over replaces the inode and
	// a file-level watch would go stale after the first update.
	if err := watcher.Add(a.dir); err != nil {
		return fmt.Errorf("watch %q: %w", a.dir, err)
	}
	target := a.path(key)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			value, err := os.ReadFile(target)
			if err != nil {
				continue
			}
			fn(value)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}
