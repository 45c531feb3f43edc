package queue

import (
	"strings"
	"time"
)

// Type identifies the kind of work a job carries.
type Type string

const (
	TypeFileExtraction     Type = "file_extraction"
	TypeBatchExtraction    Type = "batch_extraction"
	TypeConversationExport Type = "conversation_export"
	TypeCorrelation        Type = "correlation"
	TypeDiscovery          Type = "discovery"
)

var allTypes = []Type{
	TypeFileExtraction,
	TypeBatchExtraction,
	TypeConversationExport,
	TypeCorrelation,
	TypeDiscovery,
}

// ParseType converts a string into a known job Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range allTypes {
		if t == normalized {
			return t, true
		}
	}
	return "", false
}

// Status represents the lifecycle of a job. Transitions are one-way:
// pending -> running -> completed | failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

var validTransitions = map[Status]map[Status]struct{}{
	StatusPending: {StatusRunning: {}, StatusFailed: {}},
	StatusRunning: {StatusCompleted: {}, StatusFailed: {}},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	next, ok := validTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Priority orders jobs for dequeue; lower numbers run first.
type Priority int

const (
	PriorityUserTriggered      Priority = 1
	PriorityConversationExport Priority = 2
	PriorityRecentChange       Priority = 3
	PriorityScheduled          Priority = 4
	PriorityBackground         Priority = 5
)

// Valid reports whether the priority is one of the defined classes.
func (p Priority) Valid() bool {
	return p >= PriorityUserTriggered && p <= PriorityBackground
}

// Job is one unit of work persisted in the queue database.
type Job struct {
	ID          string
	Type        Type
	Status      Status
	Priority    Priority
	Payload     map[string]any
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       string
	RetryCount  int
}

// Terminal reports whether the job reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Stats aggregates job counts per status plus per-type pending depth.
type Stats struct {
	Total         int
	Pending       int
	Running       int
	Completed     int
	Failed        int
	PendingByType map[Type]int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}
