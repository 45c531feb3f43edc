// Package correlation turns the indexed corpus into consolidated entities,
// a bounded co-occurrence model, scored patterns, and finally discoveries.
// Working sets are rebuilt in memory on every run; nothing here mutates
// long-lived state incrementally.
package correlation

import (
	"context"
	"log/slog"
	"time"

	"chimera/internal/catalog"
	"chimera/internal/logging"
)

// Config bounds a correlation run.
type Config struct {
	MaxEntities     int
	MaxPairsPerFile int
	MaxTotalPairs   int
	// DiscoveryConfidence and DiscoveryMinSources gate pattern promotion.
	DiscoveryConfidence float64
	DiscoveryMinSources int
}

// Engine runs consolidation, co-occurrence modeling, and pattern detection
// against the catalog.
type Engine struct {
	catalog *catalog.Store
	cfg     Config
	logger  *slog.Logger
}

// New builds an Engine.
func New(store *catalog.Store, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.DiscoveryConfidence == 0 {
		cfg.DiscoveryConfidence = 0.7
	}
	if cfg.DiscoveryMinSources == 0 {
		cfg.DiscoveryMinSources = 2
	}
	return &Engine{
		catalog: store,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "correlation"),
	}
}

// RunReport summarizes one correlation run.
type RunReport struct {
	ConsolidatedEntities int
	Pairs                int
	Patterns             int
	Duration             time.Duration
}

// Run executes a full correlation pass: consolidate, rebuild the
// co-occurrence matrix, run every detector, persist the patterns.
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()

	consolidated, err := e.ConsolidateAll(ctx)
	if err != nil {
		return nil, err
	}
	matrix, err := e.BuildCoOccurrenceMatrix(ctx)
	if err != nil {
		return nil, err
	}
	patterns, err := e.DetectAll(ctx, matrix)
	if err != nil {
		return nil, err
	}
	for _, pattern := range patterns {
		if err := e.catalog.UpsertPattern(ctx, pattern); err != nil {
			return nil, err
		}
	}

	report := &RunReport{
		ConsolidatedEntities: consolidated,
		Pairs:                len(matrix.Pairs),
		Patterns:             len(patterns),
		Duration:             time.Since(start),
	}
	e.logger.Info("correlation run complete",
		logging.Args(
			logging.Int("entities", report.ConsolidatedEntities),
			logging.Int("pairs", report.Pairs),
			logging.Int("patterns", report.Patterns),
			logging.Duration(logging.FieldDuration, report.Duration),
		)...)
	return report, nil
}
