package topology_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/topology"
)

func vessel(t *testing.T, name string, max, current float64, addable, removable bool, content string) *domain.Vessel {
	t.Helper()
	v, err := domain.NewVessel(name, max, current, addable, removable, content)
	require.NoError(t, err)
	return v
}

func TestNewGraphPopulatesPorts(t *testing.T) {
	monomer := vessel(t, "monomer", 100, 80, false, true, "monomer")
	reactor := vessel(t, "reactor", 250, 0, true, true, "")
	nitrogen := vessel(t, "nitrogen", 10000, 10000, false, true, "nitrogen")
	pump := &domain.Device{Name: "pump_a", Kind: domain.KindSyringePump, Capacity: 5}
	chiller := &domain.Device{Name: "chiller", Kind: domain.KindThermostat}

	g, err := topology.New(
		[]*domain.Vessel{monomer, reactor, nitrogen},
		[]*domain.Device{pump, chiller},
		[]domain.Link{
			{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 1, Target: "monomer"},
			{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 2, Target: "reactor"},
			{Type: domain.LinkGas, Source: "pump_a", SourcePort: 3, Target: "nitrogen"},
			{Type: domain.LinkThermal, Source: "chiller", SourcePort: 0, Target: "reactor"},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, "monomer", pump.Ports[1])
	assert.Equal(t, "reactor", pump.Ports[2])
	assert.True(t, pump.GasPorts[3])
	assert.True(t, pump.HasGasManifold())

	// Thermal links never claim a flow port.
	assert.Empty(t, chiller.Ports)

	assert.Equal(t, 0, pump.Ordinal)
	assert.Equal(t, 1, chiller.Ordinal)

	assert.True(t, g.GasBlanketed("nitrogen"))
	assert.False(t, g.GasBlanketed("reactor"))
}

func TestNewGraphRejectsDuplicateNames(t *testing.T) {
	a := vessel(t, "flask", 10, 0, true, true, "")
	b := vessel(t, "flask", 10, 0, true, true, "")
	_, err := topology.New([]*domain.Vessel{a, b}, nil, nil)
	require.Error(t, err)

	c := vessel(t, "shared", 10, 0, true, true, "")
	dev := &domain.Device{Name: "shared", Kind: domain.KindRelay}
	_, err = topology.New([]*domain.Vessel{c}, []*domain.Device{dev}, nil)
	require.Error(t, err)
}

func TestNewGraphRejectsPortReuse(t *testing.T) {
	a := vessel(t, "a", 10, 0, true, true, "")
	b := vessel(t, "b", 10, 0, true, true, "")
	pump := &domain.Device{Name: "pump", Kind: domain.KindSyringePump}

	_, err := topology.New([]*domain.Vessel{a, b}, []*domain.Device{pump}, []domain.Link{
		{Type: domain.LinkVolumetric, Source: "pump", SourcePort: 1, Target: "a"},
		{Type: domain.LinkVolumetric, Source: "pump", SourcePort: 1, Target: "b"},
	})
	require.Error(t, err)
}

func TestNewGraphRejectsThermalLinkWithPort(t *testing.T) {
	reactor := vessel(t, "reactor", 250, 0, true, true, "")
	a := vessel(t, "a", 10, 10, false, true, "")
	pump := &domain.Device{Name: "pump", Kind: domain.KindSyringePump}
	chiller := &domain.Device{Name: "chiller", Kind: domain.KindThermostat}

	// A thermal coupling naming a flow port would silently share it with
	// the volumetric link; reject it outright.
	_, err := topology.New([]*domain.Vessel{reactor, a}, []*domain.Device{pump, chiller}, []domain.Link{
		{Type: domain.LinkVolumetric, Source: "pump", SourcePort: 1, Target: "a"},
		{Type: domain.LinkThermal, Source: "pump", SourcePort: 1, Target: "reactor"},
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "thermal")
}

func TestNewGraphRejectsDanglingLink(t *testing.T) {
	pump := &domain.Device{Name: "pump", Kind: domain.KindSyringePump}
	_, err := topology.New(nil, []*domain.Device{pump}, []domain.Link{
		{Type: domain.LinkVolumetric, Source: "pump", SourcePort: 1, Target: "ghost"},
	})
	require.Error(t, err)

	a := vessel(t, "a", 10, 0, true, true, "")
	_, err = topology.New([]*domain.Vessel{a}, nil, []domain.Link{
		{Type: domain.LinkVolumetric, Source: "ghost", SourcePort: 1, Target: "a"},
	})
	require.Error(t, err)
}

func TestNewGraphValidatesIntermediates(t *testing.T) {
	a := vessel(t, "a", 10, 0, true, false, "")
	_, err := topology.New([]*domain.Vessel{a}, nil, nil, topology.WithIntermediates("a"))
	require.Error(t, err, "intermediate must be removable")

	_, err = topology.New([]*domain.Vessel{a}, nil, nil, topology.WithIntermediates("ghost"))
	require.Error(t, err, "intermediate must exist")
}

func TestHolding(t *testing.T) {
	g, err := topology.New(nil, []*domain.Device{{Name: "pump", Kind: domain.KindSyringePump}}, nil)
	require.NoError(t, err)

	assert.Empty(t, g.Holding("pump"))
	g.NoteHolding("pump", "monomer")
	assert.Equal(t, "monomer", g.Holding("pump"))
}
