package catalog

import "time"

// FileStatus tracks a file's progress through the extraction pipeline.
type FileStatus string

const (
	FileStatusPending FileStatus = "pending"
	FileStatusIndexed FileStatus = "indexed"
	FileStatusFailed  FileStatus = "failed"
)

// FileRecord is one watched or scanned file.
type FileRecord struct {
	ID          int64
	Path        string
	ContentHash string
	SizeBytes   int64
	ModifiedAt  time.Time
	Status      FileStatus
	Error       string
	IndexedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChunkRecord is one chunk of extracted content. ChunkIndex is unique per
// file.
type ChunkRecord struct {
	ID            int64
	FileID        int64
	ChunkIndex    int
	Content       string
	ChunkType     string
	TokenEstimate int
}

// RawEntity is a single entity occurrence inside one file.
type RawEntity struct {
	ID         int64
	FileID     int64
	Text       string
	Label      string
	Start      int
	End        int
	Confidence float64
	Context    string
}

// RawOccurrence joins a raw entity with the timestamps of its source file;
// the consolidation pass works from these.
type RawOccurrence struct {
	Entity       RawEntity
	FilePath     string
	FileModified time.Time
}

// ConsolidatedEntity is the canonical, deduplicated form of an entity merged
// across all its spelling variants. The canonical key is
// (EntityType, NormalizedValue).
type ConsolidatedEntity struct {
	ID              int64
	EntityType      string
	NormalizedValue string
	Variants        []string
	OccurrenceCount int
	FileIDs         []int64
	SampleContexts  []string
	FirstSeen       time.Time
	LastSeen        time.Time
}

// PatternType classifies detected patterns.
type PatternType string

const (
	PatternExpertise    PatternType = "expertise"
	PatternRelationship PatternType = "relationship"
	PatternWorkflow     PatternType = "workflow"
	PatternHeuristic    PatternType = "heuristic"
)

// Pattern is a scored observation produced by one of the detectors.
// Patterns are keyed by a derived ID; a rerun overwrites the previous row.
type Pattern struct {
	ID          string
	Type        PatternType
	Title       string
	Description string
	Confidence  float64
	Evidence    []string
	FileIDs     []int64
	EntityKeys  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SourceCount returns the number of distinct files corroborating the pattern.
func (p *Pattern) SourceCount() int {
	return len(p.FileIDs)
}

// DiscoveryStatus is the user-facing lifecycle of a discovery. Transitions
// out of active are one-way.
type DiscoveryStatus string

const (
	DiscoveryActive    DiscoveryStatus = "active"
	DiscoveryConfirmed DiscoveryStatus = "confirmed"
	DiscoveryDismissed DiscoveryStatus = "dismissed"
)

// Discovery is a surfaced pattern the user can confirm or dismiss.
// Deduplicated by (Type, lowercased Title).
type Discovery struct {
	ID          int64
	PatternID   string
	Type        PatternType
	Title       string
	Description string
	Confidence  float64
	SourceCount int
	Status      DiscoveryStatus
	Feedback    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Conversation is one ingested AI-chat conversation.
type Conversation struct {
	ID           int64
	SourcePath   string
	ExternalID   string
	Title        string
	StartedAt    *time.Time
	MessageCount int
}

// Message is one conversation message.
type Message struct {
	ID             int64
	ConversationID int64
	Seq            int
	Role           string
	Content        string
	SentAt         *time.Time
}

// Stats aggregates catalog counts for status output.
type Stats struct {
	Files                int
	IndexedFiles         int
	FailedFiles          int
	Chunks               int
	RawEntities          int
	ConsolidatedEntities int
	Patterns             int
	Discoveries          int
	ActiveDiscoveries    int
	Conversations        int
}
