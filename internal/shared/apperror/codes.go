package apperror

const (
	// Client errors (4xx)
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidGeometry   = "INVALID_GEOMETRY"
	CodeInvalidCoordinate = "INVALID_COORDINATE"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInvalidState      = "INVALID_STATE"
	CodeTooManyRequests   = "TOO_MANY_REQUESTS"

	// Server errors (5xx)
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeProcessingTimeout  = "PROCESSING_TIMEOUT"
	CodeAuditWriteFailed   = "AUDIT_WRITE_FAILED"
)
