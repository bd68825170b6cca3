package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Error kinds shared by the router and tenant services.
var (
	ErrNotFound                = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized            = New("UNAUTHORIZED", http.StatusForbidden, "unauthorized")
	ErrAccessDenied            = New("ACCESS_DENIED", http.StatusForbidden, "access denied")
	ErrInsufficientPermissions = New("INSUFFICIENT_PERMISSIONS", http.StatusForbidden, "insufficient permissions")
	ErrValidation              = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrAlreadyExists           = New("ALREADY_EXISTS", http.StatusConflict, "resource already exists")
	ErrInvalidRole             = New("INVALID_ROLE", http.StatusBadRequest, "invalid role")
	ErrInvalidRoleAssignment   = New("INVALID_ROLE_ASSIGNMENT", http.StatusForbidden, "invalid role assignment")
	ErrInitialization          = New("INITIALIZATION_ERROR", http.StatusServiceUnavailable, "initialization error")
	ErrUserNotAuthenticated    = New("USER_NOT_AUTHENTICATED", http.StatusUnauthorized, "user not authenticated")
	ErrRoleNotFound            = New("ROLE_NOT_FOUND", http.StatusNotFound, "role not found")
	ErrInternal                = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss               = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the same code as kind.
func Is(err error, kind *Error) bool {
	if err == nil || kind == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == kind.Code
}

// Internal wraps err as an internal error with the given message.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}
