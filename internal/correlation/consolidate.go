package correlation

import (
	"context"
	"sort"
	"strings"
	"time"

	"chimera/internal/catalog"
	"chimera/internal/logging"
)

const maxSampleContexts = 10

// ConsolidateAll rebuilds the consolidated-entity table from the raw
// occurrences. Rerunning on unchanged input produces the identical set:
// every canonical key is upserted and keys no longer present are deleted.
func (e *Engine) ConsolidateAll(ctx context.Context) (int, error) {
	occurrences, err := e.catalog.AllRawOccurrences(ctx)
	if err != nil {
		return 0, err
	}

	groups := make(map[string]*catalog.ConsolidatedEntity)
	variants := make(map[string]map[string]struct{})
	fileIDs := make(map[string]map[int64]struct{})

	for _, occ := range occurrences {
		normalized := Normalize(occ.Entity.Text, occ.Entity.Label)
		if normalized == "" {
			continue
		}
		key := catalog.ConsolidatedKey(occ.Entity.Label, normalized)

		group, ok := groups[key]
		if !ok {
			group = &catalog.ConsolidatedEntity{
				EntityType:      occ.Entity.Label,
				NormalizedValue: normalized,
				FirstSeen:       occ.FileModified,
				LastSeen:        occ.FileModified,
			}
			groups[key] = group
			variants[key] = make(map[string]struct{})
			fileIDs[key] = make(map[int64]struct{})
		}

		group.OccurrenceCount++
		variants[key][strings.ToLower(occ.Entity.Text)] = struct{}{}
		fileIDs[key][occ.Entity.FileID] = struct{}{}
		if len(group.SampleContexts) < maxSampleContexts && occ.Entity.Context != "" {
			group.SampleContexts = append(group.SampleContexts, occ.Entity.Context)
		}
		if occ.FileModified.Before(group.FirstSeen) {
			group.FirstSeen = occ.FileModified
		}
		if occ.FileModified.After(group.LastSeen) {
			group.LastSeen = occ.FileModified
		}
	}

	keep := make(map[string]struct{}, len(groups))
	for key, group := range groups {
		group.Variants = sortedStrings(variants[key])
		group.FileIDs = sortedInt64s(fileIDs[key])
		if group.FirstSeen.IsZero() {
			group.FirstSeen = time.Now().UTC()
			group.LastSeen = group.FirstSeen
		}
		if err := e.catalog.UpsertConsolidatedEntity(ctx, group); err != nil {
			return 0, err
		}
		keep[key] = struct{}{}
	}

	removed, err := e.catalog.DeleteConsolidatedExcept(ctx, keep)
	if err != nil {
		return 0, err
	}
	e.logger.Info("consolidation complete",
		logging.Args(
			logging.Int("entities", len(groups)),
			logging.Int64("removed", removed),
		)...)
	return len(groups), nil
}

func sortedStrings(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedInt64s(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
