// Package watch bridges filesystem events into the daemon. Events arrive on
// fsnotify's goroutine and cross into the single-consumer scheduler over a
// bounded channel; when the channel is full or the scheduler is not yet
// running, the event is dropped with a warning rather than queued.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"chimera/internal/logging"
)

// EventType classifies a change.
type EventType string

const (
	EventCreated  EventType = "created"
	EventModified EventType = "modified"
	EventRemoved  EventType = "removed"
)

// Event is one observed file change.
type Event struct {
	Path string
	Type EventType
}

// Watcher watches library roots recursively.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	events    chan Event
	logger    *slog.Logger

	mu      sync.Mutex
	started bool
	dropped int64
}

// New builds a Watcher with the given event buffer size.
func New(queueSize int, logger *slog.Logger) (*Watcher, error) {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		events:    make(chan Event, queueSize),
		logger:    logging.NewComponentLogger(logger, "watch"),
	}, nil
}

// AddRoot registers a directory tree. Subdirectories are watched
// recursively; new subdirectories created later are picked up as their
// create events arrive.
func (w *Watcher) AddRoot(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if hidden(entry.Name()) && path != root {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Events is the bounded channel the scheduler consumes.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Dropped reports how many events were discarded so far.
func (w *Watcher) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Start begins translating fsnotify events. It returns immediately; the
// translation loop runs until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	go w.loop(ctx)
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", logging.Args(logging.Error(err))...)
		case fsEvent, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(fsEvent)
		}
	}
}

func (w *Watcher) handle(fsEvent fsnotify.Event) {
	if hidden(filepath.Base(fsEvent.Name)) {
		return
	}

	// New directories extend the watch set instead of emitting an event.
	if fsEvent.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
			if err := w.fsWatcher.Add(fsEvent.Name); err != nil {
				w.logger.Warn("failed to watch new directory",
					logging.Args(logging.String(logging.FieldFilePath, fsEvent.Name), logging.Error(err))...)
			}
			return
		}
	}

	var eventType EventType
	switch {
	case fsEvent.Op.Has(fsnotify.Create):
		eventType = EventCreated
	case fsEvent.Op.Has(fsnotify.Write):
		eventType = EventModified
	case fsEvent.Op.Has(fsnotify.Remove), fsEvent.Op.Has(fsnotify.Rename):
		eventType = EventRemoved
	default:
		return
	}

	w.deliver(Event{Path: fsEvent.Name, Type: eventType})
}

// deliver hands an event to the scheduler, dropping instead of blocking.
func (w *Watcher) deliver(event Event) {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		w.warnDropped(event, "scheduler not running")
		return
	}

	select {
	case w.events <- event:
	default:
		w.warnDropped(event, "event queue full")
	}
}

func (w *Watcher) warnDropped(event Event, reason string) {
	w.mu.Lock()
	w.dropped++
	w.mu.Unlock()
	w.logger.Warn("dropping file event",
		logging.Args(
			logging.String(logging.FieldFilePath, event.Path),
			logging.String("event", string(event.Type)),
			logging.String("reason", reason),
		)...)
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
