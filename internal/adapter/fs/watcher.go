package fs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long a path must stay quiet before its event is
// emitted. Saving a file usually produces a Create followed by one or more
// Writes.
const defaultDebounce = 100 * time.Millisecond

// EventOp tells whether a watched file is new or was rewritten.
type EventOp int

const (
	FileCreated EventOp = iota
	FileModified
)

type Event struct {
	Path string
	Op   EventOp
}

// Watcher reports files under a directory tree that were created or written.
// Bursts of events for one path are merged into a single Event.
type Watcher struct {
	watcher *fsnotify.Watcher
	root    string
	walker  *Walker
	logger  *slog.Logger
	delay   time.Duration
}

type pendingEvent struct {
	op    EventOp
	timer *time.Timer
}

func NewWatcher(root string, walker *Walker, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if walker == nil {
		walker = NewWalker([]string{"**/*.txt", "**/*.md"}, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	root, err = filepath.Abs(root)
	if err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{watcher: w, root: root, walker: walker, logger: logger, delay: defaultDebounce}, nil
}

// Watch subscribes to root and every non-excluded subdirectory and emits
// events for matching files once they have been quiet for the debounce delay.
// A merged event is FileCreated if any event in the burst was a Create. The
// channel closes when ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan Event, error) {
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(w.root, path); rel != "." && w.walker.shouldExclude(filepath.ToSlash(rel)+"/") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 100)

	go func() {
		defer close(events)

		done := make(chan struct{})
		ready := make(chan string)
		pending := make(map[string]*pendingEvent)
		defer func() {
			close(done)
			for _, p := range pending {
				p.timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case path := <-ready:
				p, ok := pending[path]
				if !ok {
					continue
				}
				delete(pending, path)
				select {
				case events <- Event{Path: path, Op: p.op}:
				case <-ctx.Done():
					return
				}
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}

				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := w.watcher.Add(event.Name); err != nil {
							w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
						}
						continue
					}
				}

				rel, err := filepath.Rel(w.root, event.Name)
				if err != nil || !w.walker.Matches(filepath.ToSlash(rel)) {
					continue
				}

				op := FileModified
				if event.Has(fsnotify.Create) {
					op = FileCreated
				}

				if p, ok := pending[event.Name]; ok {
					if op == FileCreated {
						p.op = FileCreated
					}
					p.timer.Reset(w.delay)
					continue
				}
				path := event.Name
				pending[path] = &pendingEvent{
					op: op,
					timer: time.AfterFunc(w.delay, func() {
						select {
						case ready <- path:
						case <-done:
						}
					}),
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", "error", err)
			}
		}
	}()

	return events, nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
