package engine

import (
	"errors"
	"fmt"
)

// ErrWorkerStopped is returned when handing work to a worker that has shut
// down (or shuts down before running the task).
var ErrWorkerStopped = errors.New("worker stopped")

// ErrAlreadyRunning is returned by Run when the loop is already active.
var ErrAlreadyRunning = errors.New("worker already running")

// ConfinementError is the panic value raised when worker-confined code is
// entered from another context.
type ConfinementError struct {
	// Op names the confined operation.
	Op string
	// Worker is the worker's name.
	Worker string
}

// Error implements the error interface.
func (e *ConfinementError) Error() string {
	return fmt.Sprintf("%s must run on worker %q", e.Op, e.Worker)
}
