// Package errors defines the failure classes shared across the tracker and
// maps them onto HTTP statuses for rankserver.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFetchFailure means the ResultSource could not be reached or returned
	// content that could not be parsed. It ends the current walk.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrInvalidInput is the ValidationFailure class: bad arguments detected
	// before any ingestion starts.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPersistence wraps Store failures. There is no local recovery.
	ErrPersistence = errors.New("persistence failure")
	ErrNotFound    = errors.New("not found")
	ErrTimeout     = errors.New("operation timed out")
)

// statuses is consulted in order; the first class err belongs to wins.
var statuses = []struct {
	class  error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrFetchFailure, http.StatusBadGateway},
	{ErrPersistence, http.StatusServiceUnavailable},
	{ErrTimeout, http.StatusServiceUnavailable},
}

// AppError pins an explicit HTTP status on one of the classes above.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string { return e.Err.Error() + ": " + e.Message }

func (e *AppError) Unwrap() error { return e.Err }

func Newf(class error, statusCode int, format string, args ...any) *AppError {
	return &AppError{Err: class, Message: fmt.Sprintf(format, args...), StatusCode: statusCode}
}

// Fetch wraps err as a FetchFailure.
func Fetch(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrFetchFailure, err)
}

// Persistence wraps err as a PersistenceFailure.
func Persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// HTTPStatusCode prefers an AppError's own status, then the class table,
// and falls back to 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	for _, s := range statuses {
		if errors.Is(err, s.class) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
