// Package errors re-exports github.com/cockroachdb/errors and declares the
// error kinds shared across the scheduler, dispatcher and chat pipeline.
//
// Validation kinds (schedule spec, mode, code) are meant to cross the HTTP
// boundary as client errors. Delivery and persistence kinds are absorbed at
// component boundaries and only logged.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New      = crdb.New
	Newf     = crdb.Newf
	Wrap     = crdb.Wrap
	Wrapf    = crdb.Wrapf
	Mark     = crdb.Mark
	WithHint = crdb.WithHint
	Is       = crdb.Is
	IsAny    = crdb.IsAny
	As       = crdb.As
	Unwrap   = crdb.Unwrap
)

var (
	ErrInvalidScheduleSpec = New("invalid schedule spec")
	ErrInvalidMode         = New("invalid push mode")
	ErrDuplicateTask       = New("task already in flight")
	ErrInvalidCode         = New("invalid security code")
	ErrParseFailure        = New("message could not be resolved")
	ErrTransientDelivery   = New("outbound delivery failed")
	ErrPersistence         = New("ledger persistence failed")
	ErrJobNotFound         = New("job not registered")
)

// IsClientError reports whether err stems from caller input.
func IsClientError(err error) bool {
	return IsAny(err, ErrInvalidScheduleSpec, ErrInvalidMode, ErrInvalidCode, ErrJobNotFound)
}
