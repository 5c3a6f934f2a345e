package index

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/isocode-ai/isocode/internal/logging"
)

// Watcher invalidates an index early when workspace files change, instead of
// waiting out the TTL.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts watching the workspace's top-level directories. Watching is
// best-effort: failure to start leaves the TTL as the only refresh trigger.
func Watch(root string, ix *Index) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fw.Add(root); err != nil {
		fw.Close()
		return nil, err
	}
	// Top-level subdirectories are enough signal for invalidation.
	if entries, err := os.ReadDir(root); err == nil {
		for _, e := range entries {
			if !e.IsDir() || ignoredDirs[e.Name()] || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			_ = fw.Add(filepath.Join(root, e.Name()))
		}
	}

	w := &Watcher{watcher: fw, done: make(chan struct{})}
	go func() {
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					ix.Invalidate()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logging.Debug().Err(err).Msg("index watcher error")
			case <-w.done:
				return
			}
		}
	}()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
