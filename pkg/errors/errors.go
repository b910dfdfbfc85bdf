// Package errors defines the structured error type glvault uses to carry a
// stable error code, an HTTP status, and a safe external message through the
// credential store, crypto, and relay layers without leaking secret material.
package errors

import (
	"fmt"
	"net/http"

	"github.com/genlayerlabs/glvault/pkg/constants"
)

// VaultError is a structured error carrying a taxonomy code, an HTTP status,
// a message safe to return to callers, and an optional wrapped cause that
// Error() renders for internal logging and SafeMessage() never does.
type VaultError struct {
	code       constants.ErrorCode
	httpStatus int
	message    string
	cause      error
	metadata   map[string]interface{}
}

// Error implements the error interface. It includes the cause for internal
// logging; handlers must use SafeMessage(), not Error(), when writing to HTTP responses.
func (e *VaultError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the stable machine-readable error code.
func (e *VaultError) Code() constants.ErrorCode { return e.code }

// HTTPStatus returns the HTTP status code this error maps to.
func (e *VaultError) HTTPStatus() int { return e.httpStatus }

// SafeMessage returns the message that is safe to expose to an external caller.
func (e *VaultError) SafeMessage() string { return e.message }

// Unwrap supports errors.Is/As against the wrapped cause.
func (e *VaultError) Unwrap() error { return e.cause }

// WithCause attaches an internal cause without changing the external message.
func (e *VaultError) WithCause(cause error) *VaultError {
	e.cause = cause
	return e
}

// WithMetadata attaches structured context for logging, not for the HTTP body.
func (e *VaultError) WithMetadata(key string, value interface{}) *VaultError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns the attached structured context.
func (e *VaultError) Metadata() map[string]interface{} { return e.metadata }

func newError(code constants.ErrorCode, status int, message string) *VaultError {
	return &VaultError{code: code, httpStatus: status, message: message}
}

// InvalidInput reports a malformed or missing request parameter.
func InvalidInput(message string) *VaultError {
	return newError(constants.ErrCodeInvalidInput, http.StatusBadRequest, message)
}

// Unauthenticated reports a missing or invalid signature/bearer token.
func Unauthenticated(message string) *VaultError {
	return newError(constants.ErrCodeUnauthenticated, http.StatusUnauthorized, message)
}

// NotFound reports that the named alias does not exist.
func NotFound(message string) *VaultError {
	return newError(constants.ErrCodeNotFound, http.StatusNotFound, message)
}

// AlreadyExists reports that the named alias is already registered.
func AlreadyExists(message string) *VaultError {
	return newError(constants.ErrCodeAlreadyExists, http.StatusConflict, message)
}

// RateLimited reports that the alias's quota window has been exhausted.
func RateLimited(message string) *VaultError {
	return newError(constants.ErrCodeRateLimited, http.StatusTooManyRequests, message)
}

// UpstreamFail reports that the relayed request to the third-party API failed.
func UpstreamFail(message string) *VaultError {
	return newError(constants.ErrCodeUpstreamFail, http.StatusBadGateway, message)
}

// IntegrityFail reports an authenticated-encryption or HMAC verification failure.
func IntegrityFail(message string) *VaultError {
	return newError(constants.ErrCodeIntegrityFail, http.StatusInternalServerError, message)
}

// BackendFail reports a storage backend outage or I/O error.
func BackendFail(message string) *VaultError {
	return newError(constants.ErrCodeBackendFail, http.StatusInternalServerError, message)
}

// As attempts to recover a *VaultError from a generic error.
func As(err error) (*VaultError, bool) {
	ve, ok := err.(*VaultError)
	return ve, ok
}

// ErrorResponse is the JSON envelope every HTTP error path returns. It
// matches the caller-side contract: a top-level "error" key plus a "status".
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// ToErrorResponse converts any error into the external error envelope,
// falling back to a generic "internal error"/500 for errors that were never
// classified.
func ToErrorResponse(err error) (*ErrorResponse, int) {
	if ve, ok := As(err); ok {
		return &ErrorResponse{Error: ve.SafeMessage(), Status: ve.HTTPStatus()}, ve.HTTPStatus()
	}
	return &ErrorResponse{Error: "internal error", Status: http.StatusInternalServerError}, http.StatusInternalServerError
}
