package syrinx_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfluidics/syrinx"
	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/topology"
)

func benchGraph(t *testing.T) *topology.Graph {
	t.Helper()

	monomer, err := domain.NewVessel("monomer", 100, 80, false, true, "monomer")
	require.NoError(t, err)
	reactor, err := domain.NewVessel("reactor", 250, 0, true, true, "")
	require.NoError(t, err)
	waste, err := domain.NewVessel("waste", 1000, 0, true, true, "")
	require.NoError(t, err)

	devices := []*domain.Device{
		{Name: "pump_a", Kind: domain.KindSyringePump, Bus: "rig", Address: 0, Capacity: 5},
		{Name: "gas_valve", Kind: domain.KindRelay, Bus: "rig", Address: 0, Subsystem: "GAS"},
	}
	links := []domain.Link{
		{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 1, Target: "monomer"},
		{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 2, Target: "reactor"},
		{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 3, Target: "waste"},
	}
	g, err := topology.New([]*domain.Vessel{monomer, reactor, waste}, devices, links)
	require.NoError(t, err)
	return g
}

func TestEngineTransferEndToEnd(t *testing.T) {
	eng, rig, err := syrinx.SimulatedEngine(benchGraph(t), []string{"gas"})
	require.NoError(t, err)
	defer eng.Close()

	outcome, err := eng.Transfer(context.Background(), "monomer", "reactor", 12)
	require.NoError(t, err)

	assert.Equal(t, domain.TransferCompleted, outcome.Status)
	assert.Equal(t, 12.0, outcome.VolumeMoved)
	assert.Equal(t, 3, outcome.StepsCompleted, "ceil(12/5) cycles")

	snapshots := eng.Vessels()
	byName := make(map[string]domain.VesselSnapshot)
	for _, s := range snapshots {
		byName[s.Name] = s
	}
	assert.Equal(t, 80.0-12, byName["monomer"].CurrentVolume)
	assert.Equal(t, 12.0, byName["reactor"].CurrentVolume)

	// Every cycle reached the wire as VALVE/DRAW then VALVE/DISP.
	frames := rig.Received()
	require.Len(t, frames, 12)
	assert.Equal(t, "VALVE 1", frames[0])
	assert.Equal(t, "DRAW 5 0.1", frames[1])
	assert.Equal(t, "VALVE 2", frames[2])
	assert.Equal(t, "DISP 5 0.1", frames[3])
}

func TestEngineTransferRejectedBeforeActuation(t *testing.T) {
	eng, rig, err := syrinx.SimulatedEngine(benchGraph(t), []string{"gas"})
	require.NoError(t, err)
	defer eng.Close()

	outcome, err := eng.Transfer(context.Background(), "monomer", "reactor", 500)
	require.Error(t, err)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.TransferRejected, outcome.Status)
	assert.Empty(t, rig.Received(), "validation failures never touch the hardware")
}

func TestEngineDeviceFacade(t *testing.T) {
	eng, rig, err := syrinx.SimulatedEngine(benchGraph(t), []string{"gas"})
	require.NoError(t, err)
	defer eng.Close()

	ctx := context.Background()
	require.NoError(t, eng.Devices().SetBinaryOutput(ctx, "gas_valve", true))
	assert.True(t, rig.Relay("gas"))

	status, err := eng.Status(ctx, "gas_valve")
	require.NoError(t, err)
	assert.Contains(t, status["STATUS"], "GAS=ON")
}

func TestEnginePlanTransferDoesNotActuate(t *testing.T) {
	eng, rig, err := syrinx.SimulatedEngine(benchGraph(t), []string{"gas"})
	require.NoError(t, err)
	defer eng.Close()

	plan, err := eng.PlanTransfer("monomer", "waste", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Cycles())
	assert.Empty(t, rig.Received())
}
