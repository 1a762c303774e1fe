package domain

// TransferStatus is the terminal state of an executed plan.
type TransferStatus string

const (
	TransferCompleted TransferStatus = "completed"
	TransferPartial   TransferStatus = "partial"
	TransferRejected  TransferStatus = "rejected"
)

// TransferOutcome is the structured result of ExecutePlan. Every
// execution returns one, success or not.
type TransferOutcome struct {
	Status         TransferStatus `json:"status"`
	Source         string         `json:"source"`
	Target         string         `json:"target"`
	Requested      float64        `json:"requested"`
	VolumeMoved    float64        `json:"volume_moved"`
	StepsCompleted int            `json:"steps_completed"`
	StepsPlanned   int            `json:"steps_planned"`
	// Cause is the failure description when Status != TransferCompleted.
	Cause string `json:"cause,omitempty"`
}
