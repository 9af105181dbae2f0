// Package supervisor manages the lifecycle of the local backend sidecar.
package supervisor

// State represents the current state of the supervised sidecar.
type State int

const (
	// StateNotStarted is the initial state before any launch attempt.
	StateNotStarted State = iota

	// StatePortAllocated indicates a loopback port has been reserved.
	StatePortAllocated

	// StateSpawned indicates the sidecar process has been started but is
	// not yet confirmed healthy.
	StateSpawned

	// StateHealthy indicates the sidecar answered its readiness probe.
	StateHealthy

	// StateFailed indicates the launch attempt failed.
	StateFailed

	// StateTerminated indicates the sidecar has been torn down.
	StateTerminated
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StatePortAllocated:
		return "port_allocated"
	case StateSpawned:
		return "spawned"
	case StateHealthy:
		return "healthy"
	case StateFailed:
		return "failed"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// IsActive returns true if the state represents a launch in progress or
// a running sidecar.
func (s State) IsActive() bool {
	return s == StatePortAllocated || s == StateSpawned || s == StateHealthy
}

// IsTerminal returns true if no further transitions happen from this state
// without a new launch attempt.
func (s State) IsTerminal() bool {
	return s == StateFailed || s == StateTerminated
}
