package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chimera/internal/watch"
)

func newWatcher(t *testing.T, root string) *watch.Watcher {
	t.Helper()
	watcher, err := watch.New(16, nil)
	if err != nil {
		t.Fatalf("watch.New failed: %v", err)
	}
	t.Cleanup(func() {
		watcher.Close()
	})
	if err := watcher.AddRoot(root); err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}
	return watcher
}

func waitForEvent(t *testing.T, watcher *watch.Watcher) watch.Event {
	t.Helper()
	select {
	case event := <-watcher.Events():
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for file event")
		return watch.Event{}
	}
}

func TestAddRootWalksSubdirectories(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "projects", "notes")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	watcher := newWatcher(t, root)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)

	path := filepath.Join(nested, "note.md")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	event := waitForEvent(t, watcher)
	if event.Path != path || event.Type != watch.EventCreated {
		t.Fatalf("unexpected event: %#v", event)
	}
}

func TestWatcherIgnoresHiddenFiles(t *testing.T) {
	root := t.TempDir()
	watcher := newWatcher(t, root)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)

	hidden := filepath.Join(root, ".note.md.swp")
	visible := filepath.Join(root, "note.md")
	if err := os.WriteFile(hidden, []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := os.WriteFile(visible, []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	event := waitForEvent(t, watcher)
	if event.Path != visible {
		t.Fatalf("hidden file leaked through: %#v", event)
	}
}

func TestWatcherReportsRemoval(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doomed.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	watcher := newWatcher(t, root)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	event := waitForEvent(t, watcher)
	if event.Path != path || event.Type != watch.EventRemoved {
		t.Fatalf("unexpected event: %#v", event)
	}
}

func TestDroppedStartsAtZero(t *testing.T) {
	watcher := newWatcher(t, t.TempDir())
	if dropped := watcher.Dropped(); dropped != 0 {
		t.Fatalf("expected no drops, got %d", dropped)
	}
}
