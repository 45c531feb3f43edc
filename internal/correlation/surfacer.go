package correlation

import (
	"context"

	"chimera/internal/catalog"
	"chimera/internal/logging"
)

// Surface promotes qualifying patterns to discoveries. A pattern qualifies
// only when its confidence meets the configured threshold AND at least the
// configured number of distinct source files corroborate it; a
// single-document pattern never surfaces no matter how confident.
func (e *Engine) Surface(ctx context.Context) (int, error) {
	patterns, err := e.catalog.ListPatterns(ctx, 0)
	if err != nil {
		return 0, err
	}

	surfaced := 0
	for _, pattern := range patterns {
		if pattern.Confidence < e.cfg.DiscoveryConfidence {
			continue
		}
		if pattern.SourceCount() < e.cfg.DiscoveryMinSources {
			continue
		}
		if err := e.catalog.UpsertDiscovery(ctx, &catalog.Discovery{
			PatternID:   pattern.ID,
			Type:        pattern.Type,
			Title:       pattern.Title,
			Description: pattern.Description,
			Confidence:  pattern.Confidence,
			SourceCount: pattern.SourceCount(),
		}); err != nil {
			return surfaced, err
		}
		surfaced++
	}

	e.logger.Info("discovery surfacing complete",
		logging.Args(
			logging.Int("patterns", len(patterns)),
			logging.Int("surfaced", surfaced),
		)...)
	return surfaced, nil
}
