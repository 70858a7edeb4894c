// Package errors defines the sentinel errors shared across the guesser,
// trainer, and analytics binaries, plus an AppError wrapper carrying an
// HTTP status code for the service surface.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidState signals an operation invoked before its prerequisite
	// finalization step (e.g. embedding before training completed). Always
	// a caller-side ordering bug, never retried.
	ErrInvalidState = errors.New("invalid engine state")
	// ErrCapacity signals that the finalized vocabulary does not fit the
	// configured maximum size. A misconfiguration of cutoff/max-size.
	ErrCapacity = errors.New("vocabulary capacity exceeded")
	// ErrEmptyCorpus signals a similarity search against zero training rows.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrDocCountMismatch signals that the document-frequency pass scanned a
	// different number of documents than the corpus contains. Fatal: it
	// would silently corrupt every IDF value.
	ErrDocCountMismatch = errors.New("document count mismatch")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTimeout      = errors.New("operation timed out")
	ErrUnavailable  = errors.New("service unavailable")
	ErrInternal     = errors.New("internal error")
)

// AppError wraps a sentinel with a human-readable message and the HTTP
// status the service surface should respond with.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the HTTP status code the guesser API
// should return for it.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrEmptyCorpus), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
