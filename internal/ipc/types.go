package ipc

import "time"

// JobView is the wire form of a queued job.
type JobView struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	Priority    int            `json:"priority"`
	Payload     map[string]any `json:"payload,omitempty"`
	Error       string         `json:"error,omitempty"`
	RetryCount  int            `json:"retry_count"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// SubmitRequest enqueues a new job.
type SubmitRequest struct {
	Type     string         `json:"type"`
	Priority int            `json:"priority"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// SubmitResponse returns the new job id.
type SubmitResponse struct {
	ID string `json:"id"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// OperationView is the wire form of the current-operation slot.
type OperationView struct {
	JobID          string        `json:"job_id"`
	JobType        string        `json:"job_type"`
	Elapsed        time.Duration `json:"elapsed"`
	EstimatedTotal time.Duration `json:"estimated_total"`
	JustCompleted  bool          `json:"just_completed"`
	Succeeded      bool          `json:"succeeded"`
}

// StatusResponse reports daemon and queue state. Queue stats are
// best-effort zeroed when a subsystem is not yet initialized.
type StatusResponse struct {
	Running          bool           `json:"running"`
	Ready            bool           `json:"ready"`
	PID              int            `json:"pid"`
	QueueStats       map[string]int `json:"queue_stats"`
	PendingByType    map[string]int `json:"pending_by_type"`
	CurrentOperation *OperationView `json:"current_operation,omitempty"`
	QueueDBPath      string         `json:"queue_db_path"`
	LockPath         string         `json:"lock_path"`
}

// StatsRequest fetches catalog aggregate statistics.
type StatsRequest struct{}

// StatsResponse mirrors the catalog stats.
type StatsResponse struct {
	Files                int `json:"files"`
	IndexedFiles         int `json:"indexed_files"`
	FailedFiles          int `json:"failed_files"`
	Chunks               int `json:"chunks"`
	RawEntities          int `json:"raw_entities"`
	ConsolidatedEntities int `json:"consolidated_entities"`
	Patterns             int `json:"patterns"`
	Discoveries          int `json:"discoveries"`
	Conversations        int `json:"conversations"`
}

// QueueListRequest filters job listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
	Limit    int      `json:"limit"`
}

// QueueListResponse contains queued jobs.
type QueueListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// RetryRequest re-enqueues failed jobs. Empty IDs retries all failed jobs.
type RetryRequest struct {
	IDs []string `json:"ids"`
}

// RetryResponse reports how many jobs were reset to pending.
type RetryResponse struct {
	Retried int64 `json:"retried"`
}

// ClearRequest removes all jobs from the queue.
type ClearRequest struct{}

// ClearResponse reports the number of removed jobs.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// DatabaseHealthRequest fetches job-store diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports job-store diagnostics.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalJobs        int      `json:"total_jobs"`
	Error            string   `json:"error,omitempty"`
}

// DiscoveryView is the wire form of a discovery.
type DiscoveryView struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	SourceCount int     `json:"source_count"`
	Status      string  `json:"status"`
	Feedback    string  `json:"feedback,omitempty"`
}

// DiscoveriesRequest lists discoveries, optionally filtered by status.
type DiscoveriesRequest struct {
	Statuses []string `json:"statuses"`
}

// DiscoveriesResponse contains discoveries.
type DiscoveriesResponse struct {
	Discoveries []DiscoveryView `json:"discoveries"`
}

// FeedbackRequest confirms or dismisses a discovery.
type FeedbackRequest struct {
	ID int64 `json:"id"`
	// Action is "confirm" or "dismiss".
	Action   string `json:"action"`
	Feedback string `json:"feedback,omitempty"`
}

// FeedbackResponse acknowledges the transition.
type FeedbackResponse struct {
	Status string `json:"status"`
}
