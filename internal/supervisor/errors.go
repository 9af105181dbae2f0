package supervisor

import (
	"errors"
	"fmt"
)

// ErrHealthCheckTimeout is returned when the sidecar never answered its
// readiness probe within the configured deadline. The process has already
// been torn down by the time callers see it.
var ErrHealthCheckTimeout = errors.New("backend health check timed out")

// ErrAlreadyRunning is returned when a launch is attempted while a
// previous sidecar is still attached to the handle.
var ErrAlreadyRunning = errors.New("backend already running")

// SpawnError wraps a process start failure with the executable that
// could not be launched.
type SpawnError struct {
	Executable string
	Err        error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %q: %v", e.Executable, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
