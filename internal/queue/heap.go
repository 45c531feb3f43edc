package queue

import "container/heap"

// readyJob is an entry in the in-memory ready structure. seq breaks ties
// between jobs sharing a priority and a creation timestamp so heap order
// stays deterministic.
type readyJob struct {
	job *Job
	seq uint64
}

type readyHeap []readyJob

var _ heap.Interface = (*readyHeap)(nil)

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.job.Priority != b.job.Priority {
		return a.job.Priority < b.job.Priority
	}
	if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
		return a.job.CreatedAt.Before(b.job.CreatedAt)
	}
	return a.seq < b.seq
}

func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x any) {
	*h = append(*h, x.(readyJob))
}

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = readyJob{}
	*h = old[:n-1]
	return item
}
