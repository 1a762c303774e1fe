package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// ValidationError rejects a bad request before any actuation occurs:
// non-positive volume, vessel flag violation, capacity exceeded.
// It is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// NoPathError reports that no device bridges source and target, even via
// one hop of chaining through an intermediate vessel.
type NoPathError struct {
	Source string
	Target string
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("no path from %s to %s", e.Source, e.Target)
}

// AmbiguousPathError reports that more than one device offers a direct
// path and no tie-break settled the choice.
type AmbiguousPathError struct {
	Source  string
	Target  string
	Devices []string
}

func (e *AmbiguousPathError) Error() string {
	return fmt.Sprintf("ambiguous path from %s to %s: candidates %s",
		e.Source, e.Target, strings.Join(e.Devices, ", "))
}

// DeviceUnresponsiveError is raised by the serial channel after its
// retry/backoff budget is exhausted. Bus and address are carried so an
// operator can find the silent device.
type DeviceUnresponsiveError struct {
	Bus      string
	Address  int
	Command  string
	Attempts int
	Last     error
}

func (e *DeviceUnresponsiveError) Error() string {
	return fmt.Sprintf("device %s/%d unresponsive after %d attempts (command %q): %v",
		e.Bus, e.Address, e.Attempts, e.Command, e.Last)
}

func (e *DeviceUnresponsiveError) Unwrap() error { return e.Last }

// PartialTransferError reports a plan that failed after some steps had
// already been acknowledged. The ledger reflects exactly the completed
// steps; Moved is the volume that actually left the source so callers can
// reconcile state rather than assume atomicity.
type PartialTransferError struct {
	Source         string
	Target         string
	StepsCompleted int
	StepsPlanned   int
	Moved          float64
	Cause          error
}

func (e *PartialTransferError) Error() string {
	return fmt.Sprintf("transfer %s -> %s aborted after %d/%d steps, %.3g mL moved: %v",
		e.Source, e.Target, e.StepsCompleted, e.StepsPlanned, e.Moved, e.Cause)
}

func (e *PartialTransferError) Unwrap() error { return e.Cause }
