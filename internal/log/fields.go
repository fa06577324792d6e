package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldExpenseID  = "expense_id"
	FieldAction     = "action"
	FieldQueryKey   = "query_key"
)

// Component names attached to the per-binary loggers.
const (
	ComponentAPI    = "api"
	ComponentWeb    = "web"
	ComponentWorker = "worker"
	ComponentHTTP   = "http"
	ComponentMirror = "mirror"
)
