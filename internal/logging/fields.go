package logging

// Standardized structured log field names. Components share these so that
// log queries work across the whole daemon.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldJobID     = "job_id"
	FieldJobType   = "job_type"
	FieldFilePath  = "file_path"
	FieldRequestID = "request_id"
	FieldDuration  = "duration"
)
