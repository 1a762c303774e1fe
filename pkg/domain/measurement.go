package domain

import "time"

// Measurement is the scalar (or small structured) result handed to the
// closed-loop controller by an analytical collaborator. The controller
// does not know how the value was derived.
type Measurement struct {
	// Value is the analytical signal, e.g. conversion in percent or a
	// residual monomer peak area.
	Value float64 `json:"value"`
	// Unit is a free-form unit label ("%", "au").
	Unit string `json:"unit,omitempty"`
	// Label optionally names the signal source ("nmr_conversion").
	Label string `json:"label,omitempty"`
	// TakenAt is when the sample was acquired.
	TakenAt time.Time `json:"taken_at"`
}
