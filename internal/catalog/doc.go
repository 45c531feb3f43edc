// Package catalog persists everything the pipeline extracts and the
// correlation engine derives: file records, chunks, raw entities,
// consolidated entities, patterns, discoveries, and ingested conversations.
//
// Dedup invariants live in the schema, not just in memory: consolidated
// entities are unique per (entity_type, normalized_value) and discoveries are
// unique per (type, lowercased title). Rewrites are upserts against those
// keys.
package catalog
