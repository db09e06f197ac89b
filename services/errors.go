package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes returned to API clients.
const (
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeValidation        = "validation_error"
	CodeInvalidTransition = "invalid_state_transition"
	CodeAlreadyAssigned   = "already_assigned"
	CodeConflict          = "conflict"
)

// AppError carries an HTTP status and a stable code alongside the message,
// so controllers can respond without inspecting error strings.
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *AppError) Error() string {
	return e.Message
}

// AsAppError unwraps err into an *AppError if it is one.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func Forbidden(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusForbidden, Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusConflict, Code: CodeInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func AlreadyAssigned(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusConflict, Code: CodeAlreadyAssigned, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusConflict, Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}
