package ipc

import (
	"testing"

	"chimera/internal/queue"
)

func TestBuildJobFileExtraction(t *testing.T) {
	job, err := buildJob(queue.TypeFileExtraction, queue.PriorityUserTriggered, map[string]any{"path": "/library/notes.md"})
	if err != nil {
		t.Fatalf("buildJob failed: %v", err)
	}
	payload, err := job.FileExtraction()
	if err != nil {
		t.Fatalf("FileExtraction failed: %v", err)
	}
	if payload.Path != "/library/notes.md" {
		t.Fatalf("unexpected path: %s", payload.Path)
	}

	if _, err := buildJob(queue.TypeFileExtraction, queue.PriorityUserTriggered, nil); err == nil {
		t.Fatal("expected missing path to error")
	}
}

func TestBuildJobBatchExtractionCoercesRoots(t *testing.T) {
	payload := map[string]any{"roots": []any{"/library/a", 42, "/library/b"}}
	job, err := buildJob(queue.TypeBatchExtraction, queue.PriorityUserTriggered, payload)
	if err != nil {
		t.Fatalf("buildJob failed: %v", err)
	}
	batch, err := job.BatchExtraction()
	if err != nil {
		t.Fatalf("BatchExtraction failed: %v", err)
	}
	if len(batch.Roots) != 2 || batch.Roots[0] != "/library/a" || batch.Roots[1] != "/library/b" {
		t.Fatalf("non-string entries should be dropped: %v", batch.Roots)
	}
}

func TestBuildJobConversationExportRequiresPath(t *testing.T) {
	if _, err := buildJob(queue.TypeConversationExport, queue.PriorityConversationExport, map[string]any{}); err == nil {
		t.Fatal("expected missing path to error")
	}
}

func TestBuildJobPayloadFreeTypes(t *testing.T) {
	for _, jobType := range []queue.Type{queue.TypeCorrelation, queue.TypeDiscovery} {
		job, err := buildJob(jobType, queue.PriorityScheduled, nil)
		if err != nil {
			t.Fatalf("buildJob %s failed: %v", jobType, err)
		}
		if job.Type != jobType || job.Priority != queue.PriorityScheduled {
			t.Fatalf("unexpected job: %#v", job)
		}
	}
}

func TestBuildJobUnknownType(t *testing.T) {
	if _, err := buildJob(queue.Type("mystery"), queue.PriorityBackground, nil); err == nil {
		t.Fatal("expected unknown type to error")
	}
}

func TestJobViewCopiesFields(t *testing.T) {
	job, err := queue.NewFileExtractionJob("/library/x.md", queue.PriorityRecentChange)
	if err != nil {
		t.Fatalf("NewFileExtractionJob failed: %v", err)
	}
	job.ID = "job-9"
	job.Error = "transient"
	job.RetryCount = 2

	view := jobView(job)
	if view.ID != "job-9" || view.Type != string(queue.TypeFileExtraction) {
		t.Fatalf("identity fields wrong: %#v", view)
	}
	if view.Priority != int(queue.PriorityRecentChange) || view.Error != "transient" || view.RetryCount != 2 {
		t.Fatalf("detail fields wrong: %#v", view)
	}
}
