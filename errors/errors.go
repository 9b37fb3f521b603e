// Package errors provides error handling for slurmherd.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrSubmission) {
//	    // record as failed, keep going
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Sentinel errors for the submission pipeline.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrDiscovery indicates the spec directory could not be read.
	// Fatal: the batch aborts before any submission.
	ErrDiscovery = New("spec discovery failed")

	// ErrParse indicates a single job description file could not be parsed.
	// Recovered: the file is skipped, the batch continues.
	ErrParse = New("job spec parse failed")

	// ErrSubmission indicates the scheduler rejected or failed a submission.
	// Recorded in the run report as Failed, the batch continues.
	ErrSubmission = New("submission failed")

	// ErrRunNotFound indicates the requested run does not exist in the store
	ErrRunNotFound = New("run not found")

	// ErrJobTerminal indicates a cancel was issued for an already-terminal job
	ErrJobTerminal = New("job already terminal")
)

// IsDiscoveryError checks if an error is or wraps ErrDiscovery
func IsDiscoveryError(err error) bool {
	return err != nil && Is(err, ErrDiscovery)
}

// IsParseError checks if an error is or wraps ErrParse
func IsParseError(err error) bool {
	return err != nil && Is(err, ErrParse)
}

// IsSubmissionError checks if an error is or wraps ErrSubmission
func IsSubmissionError(err error) bool {
	return err != nil && Is(err, ErrSubmission)
}

// IsRunNotFoundError checks if an error is or wraps ErrRunNotFound
func IsRunNotFoundError(err error) bool {
	return err != nil && Is(err, ErrRunNotFound)
}

// NewSubmissionError creates a submission error with a formatted message
func NewSubmissionError(format string, args ...interface{}) error {
	return Wrap(ErrSubmission, Newf(format, args...).Error())
}

// WrapSubmission wraps an error as a submission error with context
func WrapSubmission(err error, context string) error {
	return Wrap(Wrap(ErrSubmission, err.Error()), context)
}

// WrapParse wraps an error as a parse error with context
func WrapParse(err error, context string) error {
	return Wrap(Wrap(ErrParse, err.Error()), context)
}
