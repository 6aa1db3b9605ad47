// Package sqlerr defines the error kinds reported while compiling a query plan.
//
// RequestError marks malformed caller input, AccessError a well-formed query whose
// target is not allowed, and ConfigError a host process that consulted state it never
// initialized. Each carries the HTTP status the transport layer should answer with.
package sqlerr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTooDeep is wrapped by the RequestError returned for filters nested beyond the
// configured depth.
var ErrTooDeep = errors.New("filter is too deeply nested")

type RequestError struct {
	Code    int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Request builds a RequestError with a formatted message.
func Request(format string, args ...any) *RequestError {
	return &RequestError{
		Code:    http.StatusBadRequest,
		Message: fmt.Sprintf(format, args...),
	}
}

// TooDeep reports a filter nested beyond limit levels. It wraps ErrTooDeep.
func TooDeep(limit int) *RequestError {
	return &RequestError{
		Code:    http.StatusBadRequest,
		Message: fmt.Sprintf("filter is nested deeper than %d levels", limit),
		Err:     ErrTooDeep,
	}
}

// Stage names the allow-list level that rejected an access check.
type Stage string

const (
	StageMode   Stage = "mode"
	StageDB     Stage = "db"
	StageSchema Stage = "schema"
	StageTable  Stage = "table"
)

type AccessError struct {
	Code    int
	Stage   Stage
	Message string
	Err     error
}

func (e *AccessError) Error() string {
	return e.Message
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// Access builds an AccessError for the given stage.
func Access(stage Stage, format string, args ...any) *AccessError {
	return &AccessError{
		Code:    http.StatusForbidden,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
	}
}

type ConfigError struct {
	Code    int
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
