// Package testsupport holds shared helpers for package tests: temp-dir
// configs, store constructors with cleanup, and fixture files.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"chimera/internal/catalog"
	"chimera/internal/config"
	"chimera/internal/queue"
	"chimera/internal/vectorstore"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SocketPath = filepath.Join(base, "chimerad.sock")
	cfg.Paths.LibraryRoots = []string{filepath.Join(base, "library")}

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	for _, root := range cfg.Paths.LibraryRoots {
		if err := os.MkdirAll(root, 0o755); err != nil {
			t.Fatalf("mkdir library root: %v", err)
		}
	}
	return &cfg
}

// WithLibraryRoots overrides the watched roots on the test config.
func WithLibraryRoots(roots ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.LibraryRoots = roots
	}
}

// MustOpenQueueStore opens a queue store for tests and registers cleanup.
func MustOpenQueueStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenCatalog opens a catalog store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenVectors opens a vector store for tests and registers cleanup.
func MustOpenVectors(t testing.TB, cfg *config.Config) *vectorstore.SQLite {
	t.Helper()

	store, err := vectorstore.Open(cfg.VectorDBPath())
	if err != nil {
		t.Fatalf("vectorstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// WriteTextFile creates a fixture file with the given content, creating
// parent directories as needed.
func WriteTextFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
