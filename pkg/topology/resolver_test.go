package topology_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/topology"
)

// starGraph wires two pumps and an optional waste relay vessel:
//
//	pump_a: monomer, reactor, waste
//	pump_b: reactor, solvent, waste
//
// monomer -> solvent has no direct bridge and must chain through waste.
func starGraph(t *testing.T, opts ...topology.Option) *topology.Graph {
	t.Helper()
	vessels := []*domain.Vessel{
		vessel(t, "monomer", 100, 80, false, true, "monomer"),
		vessel(t, "reactor", 250, 10, true, true, ""),
		vessel(t, "solvent", 500, 400, true, true, "solvent"),
		vessel(t, "waste", 1000, 0, true, true, ""),
	}
	devices := []*domain.Device{
		{Name: "pump_a", Kind: domain.KindSyringePump, Capacity: 5},
		{Name: "pump_b", Kind: domain.KindSyringePump, Capacity: 10},
	}
	links := []domain.Link{
		{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 1, Target: "monomer"},
		{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 2, Target: "reactor"},
		{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 3, Target: "waste"},
		{Type: domain.LinkVolumetric, Source: "pump_b", SourcePort: 1, Target: "reactor"},
		{Type: domain.LinkVolumetric, Source: "pump_b", SourcePort: 2, Target: "solvent"},
		{Type: domain.LinkVolumetric, Source: "pump_b", SourcePort: 3, Target: "waste"},
	}
	g, err := topology.New(vessels, devices, links, opts...)
	require.NoError(t, err)
	return g
}

func TestResolvePathDirect(t *testing.T) {
	g := starGraph(t, topology.WithIntermediates("waste"))

	path, err := g.ResolvePath("monomer", "reactor")
	require.NoError(t, err)
	assert.False(t, path.Chained())
	require.Len(t, path.Hops, 1)
	assert.Equal(t, "pump_a", path.Hops[0].Device.Name)
	assert.Equal(t, 1, path.Hops[0].SourcePort)
	assert.Equal(t, 2, path.Hops[0].TargetPort)
}

func TestResolvePathChainsThroughIntermediate(t *testing.T) {
	g := starGraph(t, topology.WithIntermediates("waste"))

	path, err := g.ResolvePath("monomer", "solvent")
	require.NoError(t, err)
	assert.True(t, path.Chained())
	assert.Equal(t, "waste", path.Via)
	require.Len(t, path.Hops, 2)
	assert.Equal(t, "pump_a", path.Hops[0].Device.Name)
	assert.Equal(t, "pump_b", path.Hops[1].Device.Name)
}

func TestResolvePathNoIntermediateMeansNoPath(t *testing.T) {
	g := starGraph(t)

	_, err := g.ResolvePath("monomer", "solvent")
	var noPath *domain.NoPathError
	require.ErrorAs(t, err, &noPath)
	assert.Equal(t, "monomer", noPath.Source)
	assert.Equal(t, "solvent", noPath.Target)
}

func TestResolvePathUnknownNodes(t *testing.T) {
	g := starGraph(t)

	_, err := g.ResolvePath("ghost", "reactor")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = g.ResolvePath("monomer", "ghost")
	assert.ErrorAs(t, err, &verr)
}

// ambiguousGraph gives both pumps a direct monomer -> reactor bridge.
func ambiguousGraph(t *testing.T, opts ...topology.Option) *topology.Graph {
	t.Helper()
	vessels := []*domain.Vessel{
		vessel(t, "monomer", 100, 80, false, true, "monomer"),
		vessel(t, "reactor", 250, 10, true, true, "monomer"),
	}
	devices := []*domain.Device{
		{Name: "pump_a", Kind: domain.KindSyringePump, Capacity: 5},
		{Name: "pump_b", Kind: domain.KindSyringePump, Capacity: 10},
	}
	links := []domain.Link{
		{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 1, Target: "monomer"},
		{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 2, Target: "reactor"},
		{Type: domain.LinkVolumetric, Source: "pump_b", SourcePort: 1, Target: "monomer"},
		{Type: domain.LinkVolumetric, Source: "pump_b", SourcePort: 2, Target: "reactor"},
	}
	g, err := topology.New(vessels, devices, links, opts...)
	require.NoError(t, err)
	return g
}

func TestResolvePathAmbiguousWithoutTieBreak(t *testing.T) {
	g := ambiguousGraph(t)

	_, err := g.ResolvePath("monomer", "reactor")
	var ambiguous *domain.AmbiguousPathError
	require.ErrorAs(t, err, &ambiguous)
	assert.ElementsMatch(t, []string{"pump_a", "pump_b"}, ambiguous.Devices)
}

func TestResolvePathTieBreakOrdinal(t *testing.T) {
	g := ambiguousGraph(t, topology.WithTieBreak(topology.TieBreakContentOrdinal))

	path, err := g.ResolvePath("monomer", "reactor")
	require.NoError(t, err)
	assert.Equal(t, "pump_a", path.Hops[0].Device.Name, "lowest ordinal wins with no holding match")
}

func TestResolvePathTieBreakPrefersHoldingMatch(t *testing.T) {
	g := ambiguousGraph(t, topology.WithTieBreak(topology.TieBreakContentOrdinal))
	g.NoteHolding("pump_b", "monomer")

	path, err := g.ResolvePath("monomer", "reactor")
	require.NoError(t, err)
	assert.Equal(t, "pump_b", path.Hops[0].Device.Name,
		"device already holding matching content wins over ordinal")
}

func TestResolvePathDeterministic(t *testing.T) {
	// reactor -> waste is bridged by both pumps; with the tie-break
	// configured the same device must win on every call.
	g := starGraph(t,
		topology.WithIntermediates("waste"),
		topology.WithTieBreak(topology.TieBreakContentOrdinal))

	for i := 0; i < 50; i++ {
		path, err := g.ResolvePath("reactor", "waste")
		require.NoError(t, err)
		assert.Equal(t, "pump_a", path.Hops[0].Device.Name)
		assert.Equal(t, 2, path.Hops[0].SourcePort)
		assert.Equal(t, 3, path.Hops[0].TargetPort)
	}
}
