package correlation

import (
	"context"
	"sort"

	"chimera/internal/catalog"
	"chimera/internal/logging"
)

// Pair is one unordered entity pair in the co-occurrence matrix. A and B
// hold the canonical keys with A < B.
type Pair struct {
	A        string
	B        string
	ATyped   *catalog.ConsolidatedEntity
	BTyped   *catalog.ConsolidatedEntity
	Count    int
	FileIDs  map[int64]struct{}
	Strength float64
}

// Matrix is the per-run co-occurrence working set, keyed by "A\x00B".
type Matrix struct {
	Pairs     map[string]*Pair
	Truncated bool
}

// BuildCoOccurrenceMatrix rebuilds the matrix from the consolidated
// entities. Three caps keep the quadratic blowup bounded: only the top
// maxEntities by occurrence participate, each file contributes at most
// maxPairsPerFile pairs, and the build stops early once maxTotalPairs
// distinct pairs exist. Hitting a cap is a warning, not an error.
func (e *Engine) BuildCoOccurrenceMatrix(ctx context.Context) (*Matrix, error) {
	entities, err := e.catalog.ListConsolidatedEntities(ctx, "")
	if err != nil {
		return nil, err
	}

	if e.cfg.MaxEntities > 0 && len(entities) > e.cfg.MaxEntities {
		// ListConsolidatedEntities orders by occurrence already; keep the
		// top N.
		e.logger.Warn("entity cap reached, keeping most frequent",
			logging.Args(
				logging.Int("total", len(entities)),
				logging.Int("kept", e.cfg.MaxEntities),
			)...)
		entities = entities[:e.cfg.MaxEntities]
	}

	byKey := make(map[string]*catalog.ConsolidatedEntity, len(entities))
	perFile := make(map[int64][]string)
	for _, entity := range entities {
		key := catalog.ConsolidatedKey(entity.EntityType, entity.NormalizedValue)
		byKey[key] = entity
		for _, fileID := range entity.FileIDs {
			perFile[fileID] = append(perFile[fileID], key)
		}
	}

	fileOrder := make([]int64, 0, len(perFile))
	for fileID := range perFile {
		fileOrder = append(fileOrder, fileID)
	}
	sort.Slice(fileOrder, func(i, j int) bool { return fileOrder[i] < fileOrder[j] })

	matrix := &Matrix{Pairs: make(map[string]*Pair)}

build:
	for _, fileID := range fileOrder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys := perFile[fileID]
		sort.Strings(keys)

		pairsThisFile := 0
		for i := 0; i < len(keys); i++ {
			for j := i + 1; j < len(keys); j++ {
				if e.cfg.MaxPairsPerFile > 0 && pairsThisFile >= e.cfg.MaxPairsPerFile {
					continue build
				}
				pairKey := keys[i] + "\x00" + keys[j]
				pair, ok := matrix.Pairs[pairKey]
				if !ok {
					if e.cfg.MaxTotalPairs > 0 && len(matrix.Pairs) >= e.cfg.MaxTotalPairs {
						matrix.Truncated = true
						e.logger.Warn("total pair cap reached, stopping co-occurrence build early",
							logging.Args(logging.Int("pairs", len(matrix.Pairs)))...)
						break build
					}
					pair = &Pair{
						A:       keys[i],
						B:       keys[j],
						ATyped:  byKey[keys[i]],
						BTyped:  byKey[keys[j]],
						FileIDs: make(map[int64]struct{}),
					}
					matrix.Pairs[pairKey] = pair
				}
				pair.Count++
				pair.FileIDs[fileID] = struct{}{}
				pairsThisFile++
			}
		}
	}

	for _, pair := range matrix.Pairs {
		pair.Strength = pairStrength(pair.Count, len(pair.FileIDs))
	}
	return matrix, nil
}

// pairStrength scores a pair into [0,1]: 60% from how often the pair
// co-occurs, 40% from how many distinct files corroborate it.
func pairStrength(count, files int) float64 {
	countPart := float64(count) / 10
	if countPart > 1 {
		countPart = 1
	}
	filePart := float64(files) / 5
	if filePart > 1 {
		filePart = 1
	}
	return 0.6*countPart + 0.4*filePart
}
