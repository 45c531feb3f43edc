package daemon

import (
	"sync"
	"time"

	"chimera/internal/queue"
)

const durationHistorySize = 10

// Operation is a snapshot of what the worker is doing right now, or what it
// just finished within the configured window.
type Operation struct {
	JobID     string
	JobType   queue.Type
	StartedAt time.Time
	Elapsed   time.Duration
	// EstimatedTotal is the rolling average duration of the last runs of
	// this job type; zero when no history exists.
	EstimatedTotal time.Duration
	JustCompleted  bool
	Succeeded      bool
}

// Telemetry tracks the current operation and a rolling duration history per
// job type, from which dequeue-time ETAs are derived.
type Telemetry struct {
	mu                  sync.Mutex
	current             *Operation
	lastCompleted       *Operation
	lastCompletedAt     time.Time
	justCompletedWindow time.Duration
	history             map[queue.Type][]time.Duration
}

// NewTelemetry builds a tracker. The window controls how long a finished
// operation stays visible after completion.
func NewTelemetry(justCompletedWindow time.Duration) *Telemetry {
	if justCompletedWindow <= 0 {
		justCompletedWindow = 10 * time.Second
	}
	return &Telemetry{
		justCompletedWindow: justCompletedWindow,
		history:             make(map[queue.Type][]time.Duration),
	}
}

// Begin records the start of a job.
func (t *Telemetry) Begin(job *queue.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = &Operation{
		JobID:          job.ID,
		JobType:        job.Type,
		StartedAt:      time.Now(),
		EstimatedTotal: t.averageLocked(job.Type),
	}
}

// End records completion, feeding the duration into the rolling history.
func (t *Telemetry) End(job *queue.Job, duration time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	durations := append(t.history[job.Type], duration)
	if len(durations) > durationHistorySize {
		durations = durations[len(durations)-durationHistorySize:]
	}
	t.history[job.Type] = durations

	t.lastCompleted = &Operation{
		JobID:         job.ID,
		JobType:       job.Type,
		Elapsed:       duration,
		JustCompleted: true,
		Succeeded:     err == nil,
	}
	t.lastCompletedAt = time.Now()
	t.current = nil
}

// Current returns the in-flight operation, the just-completed one if still
// within the window, or nil when the worker is idle.
func (t *Telemetry) Current() *Operation {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		snapshot := *t.current
		snapshot.Elapsed = time.Since(t.current.StartedAt)
		return &snapshot
	}
	if t.lastCompleted != nil && time.Since(t.lastCompletedAt) <= t.justCompletedWindow {
		snapshot := *t.lastCompleted
		return &snapshot
	}
	return nil
}

func (t *Telemetry) averageLocked(jobType queue.Type) time.Duration {
	durations := t.history[jobType]
	if len(durations) == 0 {
		return 0
	}
	// Correlation runtime scales with catalog size, which only grows, so
	// the freshest run predicts better than a trailing average.
	if jobType == queue.TypeCorrelation {
		return durations[len(durations)-1]
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}
