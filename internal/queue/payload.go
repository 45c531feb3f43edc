package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job payloads are stored as opaque JSON. Each job type has one payload
// shape; constructors below are the only way jobs are built, and the typed
// Decode helpers are the only way payloads are read, so a type mismatch is
// caught at the dispatch boundary instead of deep inside a handler.

// FileExtractionPayload targets a single file.
type FileExtractionPayload struct {
	Path string `json:"path"`
}

// BatchExtractionPayload targets one or more directory roots. Empty Roots
// means the configured library roots.
type BatchExtractionPayload struct {
	Roots []string `json:"roots,omitempty"`
}

// ConversationExportPayload targets an AI-chat export file.
type ConversationExportPayload struct {
	Path string `json:"path"`
}

// CorrelationPayload carries no parameters; the run always rebuilds from the
// catalog.
type CorrelationPayload struct{}

// DiscoveryPayload carries no parameters.
type DiscoveryPayload struct{}

func newJob(jobType Type, priority Priority, payload any) (*Job, error) {
	if !priority.Valid() {
		return nil, fmt.Errorf("invalid priority %d", priority)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, fmt.Errorf("payload must encode to an object: %w", err)
	}
	return &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    StatusPending,
		Priority:  priority,
		Payload:   asMap,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewFileExtractionJob builds a job that processes a single file.
func NewFileExtractionJob(path string, priority Priority) (*Job, error) {
	return newJob(TypeFileExtraction, priority, FileExtractionPayload{Path: path})
}

// NewBatchExtractionJob builds a job that discovers files under roots and
// re-enqueues per-file jobs.
func NewBatchExtractionJob(roots []string, priority Priority) (*Job, error) {
	return newJob(TypeBatchExtraction, priority, BatchExtractionPayload{Roots: roots})
}

// NewConversationExportJob builds a job that ingests an AI-chat export file.
func NewConversationExportJob(path string, priority Priority) (*Job, error) {
	return newJob(TypeConversationExport, priority, ConversationExportPayload{Path: path})
}

// NewCorrelationJob builds a correlation run job.
func NewCorrelationJob(priority Priority) (*Job, error) {
	return newJob(TypeCorrelation, priority, CorrelationPayload{})
}

// NewDiscoveryJob builds a discovery surfacing job.
func NewDiscoveryJob(priority Priority) (*Job, error) {
	return newJob(TypeDiscovery, priority, DiscoveryPayload{})
}

func decodePayload(job *Job, want Type, dst any) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	if job.Type != want {
		return fmt.Errorf("job %s has type %s, want %s", job.ID, job.Type, want)
	}
	raw, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("re-marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", want, err)
	}
	return nil
}

// FileExtraction decodes the payload of a file-extraction job.
func (j *Job) FileExtraction() (FileExtractionPayload, error) {
	var p FileExtractionPayload
	err := decodePayload(j, TypeFileExtraction, &p)
	return p, err
}

// BatchExtraction decodes the payload of a batch-extraction job.
func (j *Job) BatchExtraction() (BatchExtractionPayload, error) {
	var p BatchExtractionPayload
	err := decodePayload(j, TypeBatchExtraction, &p)
	return p, err
}

// ConversationExport decodes the payload of a conversation-export job.
func (j *Job) ConversationExport() (ConversationExportPayload, error) {
	var p ConversationExportPayload
	err := decodePayload(j, TypeConversationExport, &p)
	return p, err
}
