package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldExecutionID is the pipeline execution ID
	FieldExecutionID = "execution_id"

	// FieldStep is the pipeline step (fetch, reconcile, delete, enrich, finalize)
	FieldStep = "step"

	// FieldJobKey is the upstream key of the listing being processed
	FieldJobKey = "job_key"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSource is the listing source identifier
	FieldSource = "source"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldSize is a response or payload size in bytes
	FieldSize = "size"
)
