// Package watcher reports changes to Terraform log files so they can be
// re-analyzed as Terraform writes them.
package watcher

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ccollicutt/tflog/pkg/parser"
)

// Event represents a file change detected by the watcher.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher monitors log files for changes using OS-level notifications.
type Watcher struct {
	fsw    *fsnotify.Watcher
	Events chan Event
	paths  []string
}

// New creates a Watcher for the given paths and glob patterns.
// Patterns are expanded once at startup; files created later are not picked up.
func New(patterns []string) (*Watcher, error) {
	files, err := parser.ExpandGlobs(patterns)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		fsw:    fsw,
		Events: make(chan Event, 256),
	}

	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		if err := fsw.Add(abs); err != nil {
			log.Printf("warning: cannot watch %s: %v", abs, err)
			continue
		}
		w.paths = append(w.paths, abs)
	}

	return w, nil
}

// Start begins listening for file events. It blocks until the context is
// cancelled, then closes Events.
func (w *Watcher) Start(ctx context.Context) {
	defer w.fsw.Close()
	defer close(w.Events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(ev.Op) {
				continue
			}
			select {
			case w.Events <- Event{Path: ev.Name, Op: ev.Op}:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)
		}
	}
}

// relevant reports whether an operation can change a log file's content.
func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}

// Paths returns the list of files currently being watched.
func (w *Watcher) Paths() []string {
	return w.paths
}

// Close releases the underlying watcher. It is only needed when Start is
// never called.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// ReWatch adds a path back to the watcher, e.g. after the file was replaced.
func (w *Watcher) ReWatch(path string) error {
	return w.fsw.Add(path)
}

// Debounce collapses bursts of events per path. A path is emitted once no
// new event for it has arrived for wait. The returned channel is closed
// after in is closed and pending paths are flushed, or when ctx is done.
func Debounce(ctx context.Context, in <-chan Event, wait time.Duration) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		pending := make(map[string]time.Time)
		ticker := time.NewTicker(tickFor(wait))
		defer ticker.Stop()

		emit := func(path string) bool {
			select {
			case out <- path:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-in:
				if !ok {
					for path := range pending {
						if !emit(path) {
							return
						}
					}
					return
				}
				pending[ev.Path] = time.Now().Add(wait)
			case now := <-ticker.C:
				for path, due := range pending {
					if now.Before(due) {
						continue
					}
					delete(pending, path)
					if !emit(path) {
						return
					}
				}
			}
		}
	}()

	return out
}

func tickFor(wait time.Duration) time.Duration {
	tick := wait / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	return tick
}
