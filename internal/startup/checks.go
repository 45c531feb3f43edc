package startup

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"chimera/internal/config"
)

// DefaultChecks builds the standard daemon check list. Order matters:
// directory checks precede everything that opens files under them, and
// database checks precede anything that queries.
func DefaultChecks(cfg *config.Config, probes Probes) []Check {
	checks := []Check{
		{
			Name:       "data directory",
			Required:   true,
			RetryCount: 1,
			Run: func(context.Context) error {
				return CheckDirectoryAccess(cfg.Paths.DataDir)
			},
		},
		{
			Name:       "log directory",
			Required:   true,
			RetryCount: 1,
			Run: func(context.Context) error {
				return CheckDirectoryAccess(cfg.Paths.LogDir)
			},
		},
		{
			Name:       "job queue database",
			Required:   true,
			Timeout:    10 * time.Second,
			RetryCount: 3,
			RetryDelay: time.Second,
			Run:        probes.QueueDB,
		},
		{
			Name:       "catalog database",
			Required:   true,
			Timeout:    10 * time.Second,
			RetryCount: 3,
			RetryDelay: time.Second,
			Run:        probes.CatalogDB,
		},
		{
			Name:       "vector store",
			Required:   true,
			Timeout:    10 * time.Second,
			RetryCount: 3,
			RetryDelay: time.Second,
			Run:        probes.VectorStore,
		},
	}
	for _, root := range cfg.Paths.LibraryRoots {
		root := root
		checks = append(checks, Check{
			Name:       "library root " + root,
			Required:   false,
			RetryCount: 1,
			Run: func(context.Context) error {
				return CheckDirectoryAccess(root)
			},
		})
	}
	if probes.Embedder != nil {
		checks = append(checks, Check{
			Name:       "embedding provider",
			Required:   false,
			Timeout:    30 * time.Second,
			RetryCount: 2,
			RetryDelay: 2 * time.Second,
			Run:        probes.Embedder,
		})
	}
	return checks
}

// Probes are the daemon-supplied check bodies; each should be a cheap
// connectivity or schema touch, not real work.
type Probes struct {
	QueueDB     func(ctx context.Context) error
	CatalogDB   func(ctx context.Context) error
	VectorStore func(ctx context.Context) error
	Embedder    func(ctx context.Context) error
}

// CheckDirectoryAccess verifies the path is a directory the process can
// read, write, and traverse.
func CheckDirectoryAccess(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s does not exist", path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("insufficient permissions on %s: %w", path, err)
	}
	return nil
}
