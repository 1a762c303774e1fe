package domain

import "time"

// RunStatus is the lifecycle state of a monitoring run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunConverged RunStatus = "converged"
	RunTimeout   RunStatus = "timeout"
	RunAborted   RunStatus = "aborted"
	RunError     RunStatus = "error"
)

// RunRecord is the persisted view of one closed-loop monitoring session:
// which phase it drives, every measurement taken so far, and how it
// ended. It is what operators inspect through the control API while a
// reaction is still cooking.
type RunRecord struct {
	ID           string        `json:"id"`
	Phase        string        `json:"phase"`
	Status       RunStatus     `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Iterations   int           `json:"iterations"`
	Measurements []Measurement `json:"measurements,omitempty"`
	// Cause describes the failure when Status == RunError.
	Cause string `json:"cause,omitempty"`
}
