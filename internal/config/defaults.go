package config

const (
	defaultDataDir    = "~/.local/share/chimera"
	defaultLogDir     = "~/.local/share/chimera/logs"
	defaultSocketName = "chimera.sock"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultQueuePollTimeout    = 5
	defaultWatchQueueSize      = 256
	defaultRecentChangeWindow  = 60
	defaultJustCompletedWindow = 10
	defaultJobRetentionDays    = 30

	defaultChunkTargetTokens = 400
	defaultChunkMaxTokens    = 800
	defaultCodeWindowLines   = 100

	defaultMaxEntities         = 2000
	defaultMaxPairsPerFile     = 500
	defaultMaxTotalPairs       = 100000
	defaultDiscoveryConfidence = 0.7
	defaultDiscoveryMinSources = 2

	defaultEmbeddingProvider = "local"
	defaultEmbeddingModel    = "nomic-embed-text"
	defaultEmbeddingDim      = 256
	defaultEmbeddingTimeout  = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Daemon: Daemon{
			QueuePollTimeout:    defaultQueuePollTimeout,
			WatchQueueSize:      defaultWatchQueueSize,
			RecentChangeWindow:  defaultRecentChangeWindow,
			JustCompletedWindow: defaultJustCompletedWindow,
			CorrelationSchedule: "@every 6h",
			CleanupSchedule:     "@daily",
			JobRetentionDays:    defaultJobRetentionDays,
		},
		Pipeline: Pipeline{
			ChunkTargetTokens: defaultChunkTargetTokens,
			ChunkMaxTokens:    defaultChunkMaxTokens,
			CodeWindowLines:   defaultCodeWindowLines,
		},
		Correlation: Correlation{
			MaxEntities:         defaultMaxEntities,
			MaxPairsPerFile:     defaultMaxPairsPerFile,
			MaxTotalPairs:       defaultMaxTotalPairs,
			DiscoveryConfidence: defaultDiscoveryConfidence,
			DiscoveryMinSources: defaultDiscoveryMinSources,
		},
		Embedding: Embedding{
			Provider:       defaultEmbeddingProvider,
			Model:          defaultEmbeddingModel,
			Dimension:      defaultEmbeddingDim,
			TimeoutSeconds: defaultEmbeddingTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
