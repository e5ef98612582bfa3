package agent

import "errors"

var (
	// ErrBackendFailure wraps any error returned by the model backend. It ends the run.
	ErrBackendFailure = errors.New("backend failure")

	// ErrNoProfiles is returned when every auth profile is unusable.
	ErrNoProfiles = errors.New("no usable auth profiles")
)
