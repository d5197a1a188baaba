package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrReadinessTimeout is returned when the debug port never became
	// connectable within the launch timeout.
	ErrReadinessTimeout = errors.New("timed out waiting for debug port")

	// ErrCancelled is returned when the caller cancelled the launch.
	ErrCancelled = cancelledError{}
)

type cancelledError struct{}

func (cancelledError) Error() string { return "launch cancelled" }

// Is lets errors.Is(ErrCancelled, context.Canceled) hold.
func (cancelledError) Is(target error) bool { return target == context.Canceled }

// PortAllocationError means the OS could not hand out a port.
type PortAllocationError struct {
	Cause error
}

func (e *PortAllocationError) Error() string {
	return fmt.Sprintf("port allocation failed: %v", e.Cause)
}

func (e *PortAllocationError) Unwrap() error { return e.Cause }

// DuplicateSessionError means a live session is already tracked on Port.
type DuplicateSessionError struct {
	Port int
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("port %d already has an active debug session", e.Port)
}

// SpawnError wraps a failure of the spawn collaborator.
type SpawnError struct {
	Executable string
	Cause      error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Executable, e.Cause)
}

func (e *SpawnError) Unwrap() error { return e.Cause }
