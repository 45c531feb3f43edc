package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	// LibraryRoots are the directories watched and scanned for user files.
	LibraryRoots []string `toml:"library_roots"`
	DataDir      string   `toml:"data_dir"`
	LogDir       string   `toml:"log_dir"`
	SocketPath   string   `toml:"socket_path"`
}

// Daemon contains worker loop and scheduling configuration.
type Daemon struct {
	// QueuePollTimeout bounds a single dequeue wait, in seconds.
	QueuePollTimeout int `toml:"queue_poll_timeout"`
	// WatchQueueSize is the capacity of the watcher-to-scheduler channel.
	// Events arriving while the channel is full are dropped with a warning.
	WatchQueueSize int `toml:"watch_queue_size"`
	// RecentChangeWindow decides whether a changed file is enqueued at the
	// recent-change priority or the background priority, in minutes.
	RecentChangeWindow int `toml:"recent_change_window"`
	// JustCompletedWindow keeps a finished operation visible in the
	// current-operation slot, in seconds.
	JustCompletedWindow int `toml:"just_completed_window"`
	// CorrelationSchedule is a cron expression for periodic correlation runs.
	// Empty disables the schedule.
	CorrelationSchedule string `toml:"correlation_schedule"`
	// CleanupSchedule is a cron expression for job-store cleanup. Empty
	// disables the schedule.
	CleanupSchedule  string `toml:"cleanup_schedule"`
	JobRetentionDays int    `toml:"job_retention_days"`
}

// Pipeline contains chunking configuration.
type Pipeline struct {
	// ChunkTargetTokens is the ideal chunk size in estimated tokens.
	ChunkTargetTokens int `toml:"chunk_target_tokens"`
	// ChunkMaxTokens is the hard cap above which chunks re-split on
	// sentence boundaries.
	ChunkMaxTokens int `toml:"chunk_max_tokens"`
	// CodeWindowLines is the fixed window used for code files without
	// recognizable top-level structure.
	CodeWindowLines int `toml:"code_window_lines"`
}

// Correlation contains consolidation and pattern detection configuration.
type Correlation struct {
	MaxEntities     int `toml:"max_entities"`
	MaxPairsPerFile int `toml:"max_pairs_per_file"`
	MaxTotalPairs   int `toml:"max_total_pairs"`
	// DiscoveryConfidence is the minimum pattern confidence for surfacing.
	DiscoveryConfidence float64 `toml:"discovery_confidence"`
	// DiscoveryMinSources is the corroboration floor; single-source patterns
	// never surface regardless of confidence.
	DiscoveryMinSources int `toml:"discovery_min_sources"`
}

// Embedding contains embedding provider configuration.
type Embedding struct {
	// Provider selects the embedding backend: "ollama" or "local".
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	OllamaHost string `toml:"ollama_host"`
	Dimension  int    `toml:"dimension"`
	// TimeoutSeconds bounds a single embed batch request.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for chimera.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Daemon      Daemon      `toml:"daemon"`
	Pipeline    Pipeline    `toml:"pipeline"`
	Correlation Correlation `toml:"correlation"`
	Embedding   Embedding   `toml:"embedding"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/chimera/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return value
// is the resolved path, the third reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("chimera.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// Library roots are created on a best-effort basis so the daemon can start
// while external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, root := range c.Paths.LibraryRoots {
		if strings.TrimSpace(root) != "" {
			_ = os.MkdirAll(root, 0o755)
		}
	}
	return nil
}

// QueueDBPath returns the location of the durable job queue database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// CatalogDBPath returns the location of the catalog database.
func (c *Config) CatalogDBPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// VectorDBPath returns the location of the embedding vector database.
func (c *Config) VectorDBPath() string {
	return filepath.Join(c.Paths.DataDir, "vectors.db")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "chimera.log")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "chimerad.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
