package apierr

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/onnwee/graphvis3d/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

// Error code constants organized by category
const (
	// GRAPH_ - Graph input errors
	ErrGraphNotLoaded     ErrorCode = "GRAPH_NOT_LOADED"
	ErrGraphTooLarge      ErrorCode = "GRAPH_TOO_LARGE"
	ErrGraphInvalid       ErrorCode = "GRAPH_INVALID"
	ErrGraphInvalidParams ErrorCode = "GRAPH_INVALID_PARAMS"

	// LAYOUT_ - Layout run errors
	ErrLayoutInvalidParams ErrorCode = "LAYOUT_INVALID_PARAMS"
	ErrLayoutNotStarted    ErrorCode = "LAYOUT_NOT_STARTED"
	ErrLayoutFailed        ErrorCode = "LAYOUT_FAILED"

	// STORE_ - Graph persistence errors
	ErrStoreNotFound    ErrorCode = "STORE_NOT_FOUND"
	ErrStoreInvalidName ErrorCode = "STORE_INVALID_NAME"
	ErrStoreFailed      ErrorCode = "STORE_FAILED"

	// SYSTEM_ - System and server errors
	ErrSystemInternal    ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"
	ErrSystemTimeout     ErrorCode = "SYSTEM_TIMEOUT"

	// VALIDATION_ - Request validation errors
	ErrValidationInvalidJSON   ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationInvalidFormat ErrorCode = "VALIDATION_INVALID_FORMAT"
	ErrValidationMissingField  ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrValidationInvalidValue  ErrorCode = "VALIDATION_INVALID_VALUE"

	// RATE_LIMIT_ - Rate limiting errors
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// Error represents a structured API error
type Error struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	status    int                    // HTTP status code (not serialized)
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates a new API error
func New(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to the error
func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	if err.status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(1))
	}
	w.WriteHeader(err.Status())
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{Error: err}); encErr != nil {
		logger.Warn("failed to encode error response", "code", err.Code, "error", encErr)
	}
}

func orDefault(message, def string) string {
	if message == "" {
		return def
	}
	return message
}

// Helper functions for common errors

// GraphNotLoaded reports that no layout run is active
func GraphNotLoaded() *Error {
	return New(ErrGraphNotLoaded, "No graph is loaded", http.StatusNotFound)
}

// GraphTooLarge reports a graph over the configured limits
func GraphTooLarge(nodes, edges, maxNodes, maxEdges int) *Error {
	return New(ErrGraphTooLarge, "Graph exceeds the configured size limits", http.StatusRequestEntityTooLarge).
		WithDetails(map[string]interface{}{
			"nodes":     nodes,
			"edges":     edges,
			"max_nodes": maxNodes,
			"max_edges": maxEdges,
		})
}

// GraphInvalid reports a graph body that could not be decoded
func GraphInvalid(message string) *Error {
	return New(ErrGraphInvalid, orDefault(message, "Invalid graph"), http.StatusBadRequest)
}

// GraphInvalidParams reports bad generator parameters
func GraphInvalidParams(message string) *Error {
	return New(ErrGraphInvalidParams, orDefault(message, "Invalid graph parameters"), http.StatusBadRequest)
}

// LayoutInvalidParams reports rejected physics parameters
func LayoutInvalidParams(message string) *Error {
	return New(ErrLayoutInvalidParams, orDefault(message, "Invalid layout parameters"), http.StatusBadRequest)
}

// LayoutNotStarted reports that no frame has been produced yet
func LayoutNotStarted() *Error {
	return New(ErrLayoutNotStarted, "No layout frame is available", http.StatusNotFound)
}

// LayoutFailed reports a failed layout run
func LayoutFailed(message string) *Error {
	return New(ErrLayoutFailed, orDefault(message, "Layout failed"), http.StatusInternalServerError)
}

// StoreNotFound reports a missing stored graph
func StoreNotFound(name string) *Error {
	return New(ErrStoreNotFound, "Graph not found: "+name, http.StatusNotFound).
		WithDetails(map[string]interface{}{"name": name})
}

// StoreInvalidName reports a graph name the store refuses
func StoreInvalidName(name string) *Error {
	return New(ErrStoreInvalidName, "Invalid graph name", http.StatusBadRequest).
		WithDetails(map[string]interface{}{"name": name})
}

// StoreFailed reports a storage backend failure
func StoreFailed(message string) *Error {
	return New(ErrStoreFailed, orDefault(message, "Graph store failed"), http.StatusInternalServerError)
}

// SystemInternal creates an internal server error
func SystemInternal(message string) *Error {
	return New(ErrSystemInternal, orDefault(message, "Internal server error"), http.StatusInternalServerError)
}

// SystemUnavailable creates a service unavailable error
func SystemUnavailable(message string) *Error {
	return New(ErrSystemUnavailable, orDefault(message, "Service temporarily unavailable"), http.StatusServiceUnavailable)
}

// SystemTimeout creates a timeout error
func SystemTimeout(message string) *Error {
	return New(ErrSystemTimeout, orDefault(message, "Request timeout"), http.StatusRequestTimeout)
}

// ValidationInvalidJSON creates an invalid JSON error
func ValidationInvalidJSON() *Error {
	return New(ErrValidationInvalidJSON, "Invalid JSON request body", http.StatusBadRequest)
}

// ValidationInvalidFormat creates an invalid format error
func ValidationInvalidFormat(message string) *Error {
	return New(ErrValidationInvalidFormat, orDefault(message, "Invalid request format"), http.StatusBadRequest)
}

// ValidationMissingField creates a missing field error
func ValidationMissingField(field string) *Error {
	return New(ErrValidationMissingField, "Missing required field: "+field, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

// ValidationInvalidValue creates an invalid value error
func ValidationInvalidValue(field string, message string) *Error {
	return New(ErrValidationInvalidValue, orDefault(message, "Invalid value for field: "+field), http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

// RateLimitGlobal creates a global rate limit error
func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

// RateLimitIP creates an IP rate limit error
func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// WriteErrorWithContext writes a structured error response with request ID from context
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}
