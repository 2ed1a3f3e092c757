package quote

import (
	"errors"
	"strings"
)

var (
	// ErrValidation marks requests rejected before any computation.
	ErrValidation = errors.New("quote: invalid request")
	// ErrCatalogUnavailable marks quotes that could not be computed because
	// the product catalog failed.
	ErrCatalogUnavailable = errors.New("quote: product catalog unavailable")
	// ErrNotFound is returned by Lookup when no servable entry exists.
	ErrNotFound = errors.New("quote: not found")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field problem found while normalizing a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}
