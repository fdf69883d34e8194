package ics

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports a request that violates the build invariants
// such as a missing label or a timed event without end or duration.
// Nothing is serialized when it is returned.
type ValidationError struct {
	// Fields names the offending request parameters.
	Fields []string
	Msg    string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid request: " + e.Msg
	}
	return fmt.Sprintf("invalid request (%s): %s", strings.Join(e.Fields, ", "), e.Msg)
}

// ParseError reports a parameter whose text could not be parsed, such as a
// malformed duration or alarm period.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newValidationError(msg string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Msg: msg}
}

// IsClientError reports whether err is caused by the request itself
// (ValidationError or ParseError) rather than by the builder.
func IsClientError(err error) bool {
	var ve *ValidationError
	var pe *ParseError
	return errors.As(err, &ve) || errors.As(err, &pe)
}
