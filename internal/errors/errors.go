package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stwalsh4118/geomark/internal/middleware"
)

// Error code constants for standardized error responses
const (
	ErrNotFound             = "NOT_FOUND"
	ErrBadRequest           = "BAD_REQUEST"
	ErrInternalServer       = "INTERNAL_SERVER_ERROR"
	ErrValidation           = "VALIDATION_ERROR"
	ErrParse                = "PARSE_ERROR"
	ErrUnrecognizedFormat   = "UNRECOGNIZED_FORMAT"
	ErrUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	ErrPayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	ErrNothingSelected      = "NOTHING_SELECTED"
)

// ErrorResponse is the top-level error response structure.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// Respond writes a client error envelope with the given status and code.
// It logs a warning with the request context when a logger is available.
func Respond(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	log := middleware.GetLogger(c)
	requestID := middleware.GetRequestID(c)

	if log != nil {
		logFields := map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
			"path":       c.Request.URL.Path,
		}
		if details != nil {
			logFields["details"] = details
		}
		log.Warn("Request rejected", logFields)
	}

	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
	})
}

// NotFound returns a 404 Not Found error response.
func NotFound(c *gin.Context, message string) {
	Respond(c, http.StatusNotFound, ErrNotFound, message, nil)
}

// BadRequest returns a 400 Bad Request error response with optional details.
func BadRequest(c *gin.Context, message string, details map[string]interface{}) {
	Respond(c, http.StatusBadRequest, ErrBadRequest, message, details)
}

// ParseError returns a 400 for a body that is not well-formed JSON.
func ParseError(c *gin.Context, message string, details map[string]interface{}) {
	Respond(c, http.StatusBadRequest, ErrParse, message, details)
}

// UnrecognizedFormat returns a 422 for well-formed JSON that is not a
// FeatureCollection.
func UnrecognizedFormat(c *gin.Context, message string) {
	Respond(c, http.StatusUnprocessableEntity, ErrUnrecognizedFormat, message, nil)
}

// UnsupportedMediaType returns a 415 for uploads that are not GeoJSON files.
func UnsupportedMediaType(c *gin.Context, message string) {
	Respond(c, http.StatusUnsupportedMediaType, ErrUnsupportedMediaType, message, nil)
}

// PayloadTooLarge returns a 413 when the body exceeds the configured limit.
func PayloadTooLarge(c *gin.Context, limit int64) {
	Respond(c, http.StatusRequestEntityTooLarge, ErrPayloadTooLarge, "Request body is too large",
		map[string]interface{}{"max_bytes": limit})
}

// NothingSelected returns a 400 when an export request selects no category.
func NothingSelected(c *gin.Context) {
	Respond(c, http.StatusBadRequest, ErrNothingSelected, "Select at least one category to export", nil)
}

// InternalServerError returns a 500 Internal Server Error response.
// It logs the error with full context and sends a generic error message to the client.
// The actual error details are not exposed to the client for security reasons.
func InternalServerError(c *gin.Context, message string, err error) {
	log := middleware.GetLogger(c)
	requestID := middleware.GetRequestID(c)

	logFields := map[string]interface{}{
		"message":    message,
		"request_id": requestID,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
	}

	if log != nil {
		log.Error("Internal server error", err, logFields)
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: ErrorDetail{
			Code:      ErrInternalServer,
			Message:   message,
			RequestID: requestID,
		},
	})
}

// ValidationError returns a 400 Bad Request error response with field-specific validation errors.
// It parses the validation errors from the validator library and formats them for the client.
func ValidationError(c *gin.Context, validationErrors validator.ValidationErrors) {
	details := make(map[string]interface{})
	for _, err := range validationErrors {
		details[err.Field()] = formatValidationError(err)
	}

	Respond(c, http.StatusBadRequest, ErrValidation, "Validation failed for one or more fields", details)
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too short or small (minimum: " + err.Param() + ")"
	case "max":
		return "Value is too long or large (maximum: " + err.Param() + ")"
	case "gt":
		return "Must be greater than " + err.Param()
	case "gte":
		return "Must be greater than or equal to " + err.Param()
	case "oneof":
		return "Must be one of: " + err.Param()
	case "unique":
		return "Must not contain duplicates"
	default:
		return "Validation failed for tag: " + err.Tag()
	}
}
