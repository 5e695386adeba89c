package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSubmissionInFlight = errors.New("a bid submission is already in flight")
	ErrCreationInFlight   = errors.New("an auction creation is already in flight")
	ErrNoAuction          = errors.New("no active auction")
	ErrStreamClosed       = errors.New("event stream closed")
)

// ValidationError is a local, pre-network rejection of user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError for the given input field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// SubmissionError is a bid the server refused.
type SubmissionError struct {
	Reason string
	Err    error
}

func (e *SubmissionError) Error() string {
	return e.Reason
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failed pull, mutation or push delivery.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GraphQLError carries the error list of a GraphQL response envelope.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ReasonOf extracts the user-facing reason from an error returned by the server.
// GraphQL errors expose the server message without transport noise.
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}
	var se *SubmissionError
	if errors.As(err, &se) {
		return se.Reason
	}
	var ge *GraphQLError
	if errors.As(err, &ge) {
		return ge.Error()
	}
	return err.Error()
}
