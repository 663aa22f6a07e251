package app

import (
	"errors"
	"fmt"
)

var (
	// ErrQueryInFlight rejects a request while another query is running.
	ErrQueryInFlight = errors.New("query already running")
	// ErrEmptyQuery rejects blank editor text.
	ErrEmptyQuery = errors.New("no query to execute")
	// ErrDiscardDeclined is returned when the user keeps pending edits
	// instead of letting a new result replace them.
	ErrDiscardDeclined = errors.New("pending edits kept")
)

// ErrConnection represents a database connection error.
type ErrConnection struct {
	Profile string
	Cause   error
}

func (e *ErrConnection) Error() string {
	if e.Profile == "" {
		return fmt.Sprintf("connection error: %v", e.Cause)
	}
	return fmt.Sprintf("connection error (%s): %v", e.Profile, e.Cause)
}

func (e *ErrConnection) Unwrap() error {
	return e.Cause
}

// ErrQuery represents a query execution error.
type ErrQuery struct {
	Query string
	Cause error
}

func (e *ErrQuery) Error() string {
	return fmt.Sprintf("query error: %v", e.Cause)
}

func (e *ErrQuery) Unwrap() error {
	return e.Cause
}

// ErrConfig represents a configuration error.
type ErrConfig struct {
	Cause error
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config error: %v", e.Cause)
}

func (e *ErrConfig) Unwrap() error {
	return e.Cause
}
