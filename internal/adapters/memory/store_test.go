package memory_test

import (
	"testing"

	"github.com/openfluidics/syrinx/internal/adapters/memory"
	"github.com/openfluidics/syrinx/pkg/ports/tests"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.New()
	tests.RunStoreContractTest(t, store)
}
