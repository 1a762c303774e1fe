package ports

import (
	"context"

	"github.com/openfluidics/syrinx/pkg/domain"
)

// RunStore defines the interface for persisting monitoring run records.
// This lets an operator inspect a long-running reaction from outside the
// process, and keeps history across restarts when a durable backend is
// configured.
type RunStore interface {
	// Save persists the record for a given run ID.
	Save(ctx context.Context, runID string, rec *domain.RunRecord) error

	// Load retrieves the record for a given run ID.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.RunRecord, error)

	// Delete removes the record for a given run ID.
	Delete(ctx context.Context, runID string) error

	// List returns the known run IDs.
	List(ctx context.Context) ([]string, error)
}
