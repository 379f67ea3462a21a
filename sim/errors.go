package sim

import (
	"errors"
	"fmt"
)

// Construction and wiring errors. All of them are fatal for a run: they point
// at a bug in the simulation setup or protocol, not at a transient condition.
var (
	ErrInvalidTime        = errors.New("event scheduled in the past")
	ErrUnhandledEvent     = errors.New("no handler registered for event kind")
	ErrDuplicateHandler   = errors.New("handler already registered for event kind")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrInvalidTransfer    = errors.New("invalid transfer")
	ErrNoPeers            = errors.New("no peer available")
	ErrAlreadyRun         = errors.New("simulation already run")
)

// ErrStalledTransfer is returned when a transfer can never complete because
// the sender or receiver has no bandwidth. The run is aborted instead of
// waiting forever.
var ErrStalledTransfer = errors.New("transfer stalled: zero bandwidth")

// RunError reports which handler failed and at what simulated time.
type RunError struct {
	Time   float64
	Kind   EventKind
	Target int
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("[t=%.3f] %s on client %d: %v", e.Time, e.Kind, e.Target, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
