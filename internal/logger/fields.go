package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Request-scoped fields, carried in the context logger.
const (
	FieldRequestID = "request_id" // X-Request-ID of the HTTP request
	FieldSessionID = "session_id" // browsing session
	FieldComponent = "component"
)

// Gallery fields.
const (
	FieldSource  = "source"   // page source identifier
	FieldPage    = "page"     // 1-based page number of a fetch
	FieldImageID = "image_id" // listing ID
	FieldOp      = "op"       // timed operation name, see Entry
)

// Metric fields, aggregated from Entry lines.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size" // bytes
	FieldStatus     = "status"
)
