// Package queue implements the durable, priority-ordered job queue.
//
// Every job is persisted to SQLite before it becomes visible to the worker;
// the in-memory ready heap is only an ordering accelerator and is rebuilt
// from storage via LoadPendingJobs at daemon startup. Lower priority numbers
// dequeue first; ties break FIFO on creation time.
//
// Multiple producers may enqueue concurrently. A single logical consumer
// dequeues; Dequeue is a bounded wait and returns (nil, nil) when no work is
// available within the timeout.
package queue
