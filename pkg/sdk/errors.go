package cardex

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched by APIError. Use errors.Is() to check.
var (
	ErrBadRequest   = errors.New("cardex: bad request")
	ErrUnauthorized = errors.New("cardex: unauthorized")
	ErrNoMatch      = errors.New("cardex: no match")
	ErrUpstream     = errors.New("cardex: upstream vectorization failed")
	ErrServer       = errors.New("cardex: server error")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("cardex: http %d", e.Status)
	}
	return fmt.Sprintf("cardex: http %d: %s: %s", e.Status, e.Code, e.Message)
}

// Is maps the response status to a sentinel error.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrBadRequest:
		return e.Status == http.StatusBadRequest
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNoMatch:
		return e.Status == http.StatusNotFound
	case ErrUpstream:
		return e.Status == http.StatusBadGateway
	case ErrServer:
		return e.Status >= http.StatusInternalServerError && e.Status != http.StatusBadGateway
	}
	return false
}
