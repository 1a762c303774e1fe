package device_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfluidics/syrinx/pkg/device"
	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/serial"
	"github.com/openfluidics/syrinx/pkg/topology"
)

func testRig(t *testing.T) (*device.Facade, *serial.SimulatedRig) {
	t.Helper()

	monomer, err := domain.NewVessel("monomer", 100, 80, false, true, "monomer")
	require.NoError(t, err)
	reactor, err := domain.NewVessel("reactor", 250, 0, true, true, "")
	require.NoError(t, err)

	devices := []*domain.Device{
		{Name: "pump_a", Kind: domain.KindSyringePump, Bus: "rig", Address: 0, Capacity: 5},
		{Name: "dialysis_pump", Kind: domain.KindPeristalticPump, Bus: "rig", Address: 0},
		{Name: "hotplate", Kind: domain.KindThermostat, Bus: "rig", Address: 0},
		{Name: "gas_valve", Kind: domain.KindRelay, Bus: "rig", Address: 0, Subsystem: "GAS"},
		{Name: "vial_arm", Kind: domain.KindActuator, Bus: "rig", Address: 0, MinPosition: 1000, MaxPosition: 2000},
	}
	links := []domain.Link{
		{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 1, Target: "monomer"},
		{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 2, Target: "reactor"},
	}
	g, err := topology.New([]*domain.Vessel{monomer, reactor}, devices, links)
	require.NoError(t, err)

	rig := serial.NewSimulatedRig([]string{"gas"}, 1000, 2000)
	ch := serial.NewChannel(
		serial.WithTimeout(100*time.Millisecond),
		serial.WithRetries(1),
		serial.WithBackoff(time.Millisecond),
	)
	ch.Attach("rig", rig)

	return device.New(ch, g), rig
}

func TestDrawSelectsValveThenDraws(t *testing.T) {
	f, rig := testRig(t)

	require.NoError(t, f.Draw(context.Background(), "pump_a", 1, 2.5, 0.1))
	assert.Equal(t, []string{"VALVE 1", "DRAW 2.5 0.1"}, rig.Received())
}

func TestDrawValidation(t *testing.T) {
	f, _ := testRig(t)
	ctx := context.Background()

	var verr *domain.ValidationError
	assert.ErrorAs(t, f.Draw(ctx, "pump_a", 1, 0, 0.1), &verr)
	assert.ErrorAs(t, f.Draw(ctx, "pump_a", 1, 6, 0.1), &verr, "exceeds syringe capacity")
	assert.ErrorAs(t, f.Draw(ctx, "hotplate", 1, 1, 0.1), &verr, "wrong device kind")
	assert.ErrorAs(t, f.Draw(ctx, "ghost", 1, 1, 0.1), &verr)
}

func TestDispense(t *testing.T) {
	f, rig := testRig(t)

	require.NoError(t, f.Dispense(context.Background(), "pump_a", 2, 2.5, 0.2))
	assert.Equal(t, []string{"VALVE 2", "DISP 2.5 0.2"}, rig.Received())
}

func TestRunContinuous(t *testing.T) {
	f, rig := testRig(t)

	require.NoError(t, f.RunContinuous(context.Background(), "dialysis_pump", 1.5, 30*time.Second))
	assert.Equal(t, []string{"RUN 1.5 30"}, rig.Received())

	var verr *domain.ValidationError
	assert.ErrorAs(t, f.RunContinuous(context.Background(), "dialysis_pump", 0, time.Second), &verr)
}

func TestSetTemperatureAndStir(t *testing.T) {
	f, rig := testRig(t)
	ctx := context.Background()

	require.NoError(t, f.SetTemperature(ctx, "hotplate", 70))
	require.NoError(t, f.SetStir(ctx, "hotplate", 300))
	assert.Equal(t, []string{"TEMP 70", "RPM 300"}, rig.Received())

	var verr *domain.ValidationError
	assert.ErrorAs(t, f.SetStir(ctx, "hotplate", -1), &verr)
}

func TestSetBinaryOutput(t *testing.T) {
	f, rig := testRig(t)
	ctx := context.Background()

	require.NoError(t, f.SetBinaryOutput(ctx, "gas_valve", true))
	assert.True(t, rig.Relay("gas"))

	require.NoError(t, f.SetBinaryOutput(ctx, "gas_valve", false))
	assert.False(t, rig.Relay("gas"))

	assert.Equal(t, []string{"GAS_ON", "GAS_OFF"}, rig.Received())
}

func TestSetPosition(t *testing.T) {
	f, rig := testRig(t)
	ctx := context.Background()

	require.NoError(t, f.SetPosition(ctx, "vial_arm", 1500))
	assert.Equal(t, 1500, rig.Position())

	var verr *domain.ValidationError
	assert.ErrorAs(t, f.SetPosition(ctx, "vial_arm", 2500), &verr, "range checked host-side")
	assert.Equal(t, 1500, rig.Position())
}

func TestStatusLiveAndCached(t *testing.T) {
	f, _ := testRig(t)
	ctx := context.Background()

	require.NoError(t, f.SetBinaryOutput(ctx, "gas_valve", true))

	status, err := f.Status(ctx, "gas_valve")
	require.NoError(t, err)
	assert.Contains(t, status["STATUS"], "GAS=ON")
}

type deadTransport struct{}

func (deadTransport) Exchange(ctx context.Context, line string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (deadTransport) Close() error { return nil }

func TestStatusFallsBackToCache(t *testing.T) {
	g, err := topology.New(nil, []*domain.Device{
		{Name: "gas_valve", Kind: domain.KindRelay, Bus: "rig", Address: 0, Subsystem: "GAS"},
	}, nil)
	require.NoError(t, err)

	rig := serial.NewSimulatedRig([]string{"gas"}, 1000, 2000)
	ch := serial.NewChannel(
		serial.WithTimeout(20*time.Millisecond),
		serial.WithRetries(1),
		serial.WithBackoff(time.Millisecond),
	)
	ch.Attach("rig", rig)
	f := device.New(ch, g)
	ctx := context.Background()

	require.NoError(t, f.SetBinaryOutput(ctx, "gas_valve", true))

	// The device goes silent; STATUS must still be answerable from the
	// host-side record of acknowledged commands.
	ch.Attach("rig", deadTransport{})

	status, err := f.Status(ctx, "gas_valve")
	require.NoError(t, err)
	assert.Equal(t, "ON", status["GAS"])
}
