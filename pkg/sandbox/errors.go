package sandbox

import "errors"

var (
	// ErrInvalidBackend is returned when the sandbox backend is unknown
	ErrInvalidBackend = errors.New("invalid sandbox backend")

	// ErrInterpreterRequired is returned when the host backend has no interpreter
	ErrInterpreterRequired = errors.New("interpreter is required for host backend")

	// ErrDockerImageRequired is returned when the docker backend has no image
	ErrDockerImageRequired = errors.New("docker image is required for docker backend")

	// ErrInvalidTimeout is returned when the timeout is invalid
	ErrInvalidTimeout = errors.New("invalid timeout (must be >= 0)")

	// ErrInvalidProcessLimit is returned when the process limit is invalid
	ErrInvalidProcessLimit = errors.New("invalid process limit (must be >= 0)")

	// ErrEmptyCode is returned when a request carries no code
	ErrEmptyCode = errors.New("code is required")
)
