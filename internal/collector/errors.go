package collector

import "errors"

var (
	// ErrSampleFailure means the whole host counter interface was unreachable.
	ErrSampleFailure = errors.New("host sample failed")
	// ErrSourceUnavailable means a counter source could not be reached at all.
	ErrSourceUnavailable = errors.New("counter source unavailable")
	// ErrCycleFailure wraps anything that made a sampling cycle give up.
	ErrCycleFailure = errors.New("sampling cycle failed")
)
