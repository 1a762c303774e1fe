package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/ports"
)

// RunStoreContractTest is a reusable test suite that verifies if an adapter complies with ports.RunStore.
func RunStoreContractTest(t *testing.T, store ports.RunStore) {
	t.Helper()
	ctx := context.Background()

	record := func(id string) *domain.RunRecord {
		now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
		return &domain.RunRecord{
			ID:         id,
			Phase:      "reaction",
			Status:     domain.RunRunning,
			StartedAt:  now,
			UpdatedAt:  now,
			Iterations: 2,
			Measurements: []domain.Measurement{
				{Value: 41.5, Unit: "%", Label: "conversion", TakenAt: now},
			},
		}
	}

	// 1. Test Save + Load round trip
	t.Run("SaveLoad", func(t *testing.T) {
		rec := record("run-alpha")
		if err := store.Save(ctx, rec.ID, rec); err != nil {
			t.Fatalf("unexpected error saving: %v", err)
		}
		got, err := store.Load(ctx, rec.ID)
		if err != nil {
			t.Fatalf("unexpected error loading: %v", err)
		}
		if got.ID != rec.ID || got.Phase != rec.Phase || got.Status != rec.Status {
			t.Errorf("record mismatch. got %+v, want %+v", got, rec)
		}
		if len(got.Measurements) != 1 || got.Measurements[0].Value != 41.5 {
			t.Errorf("measurements not preserved: %+v", got.Measurements)
		}
	})

	// 2. Test Save overwrites existing records
	t.Run("SaveOverwrite", func(t *testing.T) {
		rec := record("run-beta")
		if err := store.Save(ctx, rec.ID, rec); err != nil {
			t.Fatalf("unexpected error saving: %v", err)
		}
		rec.Status = domain.RunConverged
		rec.Iterations = 7
		if err := store.Save(ctx, rec.ID, rec); err != nil {
			t.Fatalf("unexpected error re-saving: %v", err)
		}
		got, err := store.Load(ctx, rec.ID)
		if err != nil {
			t.Fatalf("unexpected error loading: %v", err)
		}
		if got.Status != domain.RunConverged || got.Iterations != 7 {
			t.Errorf("overwrite not applied. got %+v", got)
		}
	})

	// 3. Test Load (NotFound)
	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := store.Load(ctx, "no-such-run")
		if !errors.Is(err, domain.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	// 4. Test Delete
	t.Run("Delete", func(t *testing.T) {
		rec := record("run-gamma")
		if err := store.Save(ctx, rec.ID, rec); err != nil {
			t.Fatalf("unexpected error saving: %v", err)
		}
		if err := store.Delete(ctx, rec.ID); err != nil {
			t.Fatalf("unexpected error deleting: %v", err)
		}
		if _, err := store.Load(ctx, rec.ID); !errors.Is(err, domain.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound after delete, got %v", err)
		}
	})

	// 5. Test List covers saved runs
	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing: %v", err)
		}
		lookup := make(map[string]bool)
		for _, id := range ids {
			lookup[id] = true
		}
		for _, want := range []string{"run-alpha", "run-beta"} {
			if !lookup[want] {
				t.Errorf("run %s missing from list", want)
			}
		}
		if lookup["run-gamma"] {
			t.Error("deleted run still listed")
		}
	})
}
