package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error that knows how it should be rendered over HTTP.
type AppError struct {
	Status  int
	Code    string
	Message string
	Details any
	Err     error
}

// Errorf builds an AppError with a formatted client-facing message.
func Errorf(status int, code, format string, args ...any) *AppError {
	return &AppError{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an HTTP rendering to err. The cause stays reachable through
// errors.Is and errors.As but is never shown to clients.
func Wrap(err error, status int, code, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message, Err: err}
}

// WithDetails sets the structured details rendered next to the message.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
