package scheduler

import "errors"

var (
	// ErrBadConfigurationValue rejects an admission limit below the minimum.
	ErrBadConfigurationValue = errors.New("bad configuration value")
	// ErrSchedulingConflict reports that compare-and-swap retries were exhausted.
	ErrSchedulingConflict = errors.New("scheduling conflict")
)
