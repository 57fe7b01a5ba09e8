// Package errors provides error handling for batchwatch.
//
// It re-exports github.com/cockroachdb/errors so every package gets stack
// traces, wrapping and user-facing hints from one import:
//
//	if err := store.GetJob(ctx, id); err != nil {
//	    return errors.Wrapf(err, "failed to load job %d", id)
//	}
//
// The sentinels below classify failures of a report run. Wrap them to add
// context; errors.Is still matches through the wrap.
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
	Is           = crdb.Is
	IsAny        = crdb.IsAny
	As           = crdb.As
	Unwrap       = crdb.Unwrap
	UnwrapAll    = crdb.UnwrapAll
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
	Mark         = crdb.Mark
)

var (
	// ErrNotFound indicates a required record (job, config key) does not exist.
	ErrNotFound = New("not found")

	// ErrInvalidConfig indicates configuration that cannot be used even after
	// falling back to defaults.
	ErrInvalidConfig = New("invalid configuration")

	// ErrDataAccess marks failures talking to the job database. A report run
	// that hits one while resolving its window or due set is aborted.
	ErrDataAccess = New("data access failed")

	// ErrDelivery marks failures handing the finished report to the mailer.
	ErrDelivery = New("report delivery failed")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsDataAccessError checks if an error is or wraps ErrDataAccess.
func IsDataAccessError(err error) bool {
	return err != nil && Is(err, ErrDataAccess)
}

// NewNotFoundError creates a not-found error with a formatted message.
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// WrapDataAccess marks err as a data-access failure and adds context.
func WrapDataAccess(err error, context string) error {
	if err == nil {
		return nil
	}
	return Wrap(Mark(err, ErrDataAccess), context)
}
