package cli

import (
	"errors"
	"fmt"

	"github.com/vburojevic/dbgl/internal/domain"
	"github.com/vburojevic/dbgl/internal/output"
)

// outputErrorCommon normalizes error emission across commands, respecting
// ndjson vs text formats so callers always get machine-readable failures.
func outputErrorCommon(globals *Globals, code, message string, hint ...string) error {
	if globals != nil && globals.Format == "ndjson" {
		_ = output.NewNDJSONWriter(globals.Stdout).WriteError(code, message, hint...)
	} else if globals != nil {
		_ = output.NewTextWriter(globals.Stderr).WriteError(code, message, hint...)
	}
	return errors.New(message)
}

// launchErrorCode maps a launcher failure to its error code and hint
func launchErrorCode(err error) (code, hint string) {
	var (
		alloc *domain.PortAllocationError
		dup   *domain.DuplicateSessionError
		spawn *domain.SpawnError
	)
	switch {
	case errors.Is(err, domain.ErrCancelled):
		return "CANCELLED", ""
	case errors.Is(err, domain.ErrReadinessTimeout):
		return "READINESS_TIMEOUT", "the target is still running; raise --timeout or check that it opens the debug port"
	case errors.As(err, &alloc):
		return "PORT_ALLOCATION_FAILED", "check ports.bind_host"
	case errors.As(err, &dup):
		return "DUPLICATE_SESSION", fmt.Sprintf("run 'dbgl sessions rm --port %d' or pass --new", dup.Port)
	case errors.As(err, &spawn):
		return "SPAWN_FAILED", "check launch.executable or --exe"
	}
	return "LAUNCH_FAILED", ""
}

func outputLaunchError(globals *Globals, err error) error {
	code, hint := launchErrorCode(err)
	if hint == "" {
		return outputErrorCommon(globals, code, err.Error())
	}
	return outputErrorCommon(globals, code, err.Error(), hint)
}
