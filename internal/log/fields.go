package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"
	FieldKey        = "key"
	FieldCount      = "count"
	FieldState      = "state"
	FieldRoute      = "route"
	FieldUserID     = "user_id"
	FieldBookID     = "book_id"
	FieldEvent      = "event"
)

// Component names.
const (
	ComponentApp     = "app"
	ComponentSession = "session"
	ComponentGateway = "gateway"
	ComponentCache   = "cache"
	ComponentStorage = "storage"
	ComponentAudit   = "audit"
	ComponentConsole = "console"
	ComponentCLI     = "cli"
)

// Error type categories.
const (
	ErrorTypeAuth       = "auth_error"
	ErrorTypeNetwork    = "network_error"
	ErrorTypeValidation = "validation_error"
	ErrorTypeDatabase   = "database_error"
)
