package chi

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes returned by the API.
const (
	CodeInvalidContentType  ErrorCode = "invalid-content-type"
	CodeInvalidMultipart    ErrorCode = "invalid-multipart"
	CodeMissingFile         ErrorCode = "missing-file"
	CodeVectorizationFailed ErrorCode = "vectorization-failed"
	CodeStoreUnavailable    ErrorCode = "store-unavailable"
	CodeStoreQuery          ErrorCode = "store-query"
	CodeMissingQuery        ErrorCode = "missing-query"
	CodeNoMatch             ErrorCode = "no-match"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode, msg string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
