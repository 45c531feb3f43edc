package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDaemon()
	c.normalizePipeline()
	c.normalizeCorrelation()
	c.normalizeEmbedding()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	roots := make([]string, 0, len(c.Paths.LibraryRoots))
	seen := map[string]struct{}{}
	for _, root := range c.Paths.LibraryRoots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("paths.library_roots: %w", err)
		}
		if _, ok := seen[expanded]; ok {
			continue
		}
		seen[expanded] = struct{}{}
		roots = append(roots, expanded)
	}
	c.Paths.LibraryRoots = roots

	c.Paths.SocketPath = strings.TrimSpace(c.Paths.SocketPath)
	if c.Paths.SocketPath == "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.DataDir, defaultSocketName)
	} else if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeDaemon() {
	if c.Daemon.QueuePollTimeout <= 0 {
		c.Daemon.QueuePollTimeout = defaultQueuePollTimeout
	}
	if c.Daemon.WatchQueueSize <= 0 {
		c.Daemon.WatchQueueSize = defaultWatchQueueSize
	}
	if c.Daemon.RecentChangeWindow <= 0 {
		c.Daemon.RecentChangeWindow = defaultRecentChangeWindow
	}
	if c.Daemon.JustCompletedWindow <= 0 {
		c.Daemon.JustCompletedWindow = defaultJustCompletedWindow
	}
	if c.Daemon.JobRetentionDays <= 0 {
		c.Daemon.JobRetentionDays = defaultJobRetentionDays
	}
	c.Daemon.CorrelationSchedule = strings.TrimSpace(c.Daemon.CorrelationSchedule)
	c.Daemon.CleanupSchedule = strings.TrimSpace(c.Daemon.CleanupSchedule)
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.ChunkTargetTokens <= 0 {
		c.Pipeline.ChunkTargetTokens = defaultChunkTargetTokens
	}
	if c.Pipeline.ChunkMaxTokens <= 0 {
		c.Pipeline.ChunkMaxTokens = defaultChunkMaxTokens
	}
	if c.Pipeline.ChunkMaxTokens < c.Pipeline.ChunkTargetTokens {
		c.Pipeline.ChunkMaxTokens = c.Pipeline.ChunkTargetTokens
	}
	if c.Pipeline.CodeWindowLines <= 0 {
		c.Pipeline.CodeWindowLines = defaultCodeWindowLines
	}
}

func (c *Config) normalizeCorrelation() {
	if c.Correlation.MaxEntities <= 0 {
		c.Correlation.MaxEntities = defaultMaxEntities
	}
	if c.Correlation.MaxPairsPerFile <= 0 {
		c.Correlation.MaxPairsPerFile = defaultMaxPairsPerFile
	}
	if c.Correlation.MaxTotalPairs <= 0 {
		c.Correlation.MaxTotalPairs = defaultMaxTotalPairs
	}
	if c.Correlation.DiscoveryConfidence <= 0 {
		c.Correlation.DiscoveryConfidence = defaultDiscoveryConfidence
	}
	if c.Correlation.DiscoveryMinSources <= 0 {
		c.Correlation.DiscoveryMinSources = defaultDiscoveryMinSources
	}
}

func (c *Config) normalizeEmbedding() {
	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = defaultEmbeddingProvider
	}
	c.Embedding.Model = strings.TrimSpace(c.Embedding.Model)
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultEmbeddingModel
	}
	c.Embedding.OllamaHost = strings.TrimSpace(c.Embedding.OllamaHost)
	if c.Embedding.Dimension <= 0 {
		c.Embedding.Dimension = defaultEmbeddingDim
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		c.Embedding.TimeoutSeconds = defaultEmbeddingTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
