package sim_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BrunoSantos751/EcoGrid/network"
	"github.com/BrunoSantos751/EcoGrid/sim"
	"github.com/BrunoSantos751/EcoGrid/simconfig"
)

type OrchestratorSuite struct {
	suite.Suite
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func tinyHierarchy(t require.TestingT) *network.Graph {
	g := network.NewGraph()
	require.NoError(t, g.AddNode(&network.Node{ID: 1, Kind: network.Substation, ParentID: network.NoParent, MaxCapacity: 10000, Active: true, Efficiency: 1}))
	require.NoError(t, g.AddNode(&network.Node{ID: 2, Kind: network.Transformer, ParentID: 1, MaxCapacity: 1000, Active: true, Efficiency: 0.95}))
	c1 := &network.Node{ID: 3, Kind: network.Consumer, ParentID: 2, MaxCapacity: 500, Active: true, Efficiency: 0.98, CurrentLoad: 200}
	c2 := &network.Node{ID: 4, Kind: network.Consumer, ParentID: 2, MaxCapacity: 500, Active: true, Efficiency: 0.98, CurrentLoad: 300}
	require.NoError(t, g.AddNode(c1))
	require.NoError(t, g.AddNode(c2))
	require.NoError(t, g.AddEdge(1, 2, 10, 0.05, 0.99))
	require.NoError(t, g.AddEdge(2, 3, 0.5, 0.2, 0.95))
	require.NoError(t, g.AddEdge(2, 4, 0.8, 0.2, 0.95))
	return g
}

// TestTinyHierarchyRollup covers Scenario C: T's load rolls up to ~1.05x the
// sum of its consumers' current loads, plus cable losses, and S mirrors it.
func (s *OrchestratorSuite) TestTinyHierarchyRollup() {
	g := tinyHierarchy(s.T())
	cfg := simconfig.Default()
	cfg.EnableNoise = false
	orch := sim.New(g, cfg, nil)

	orch.Step()

	transformer, ok := g.GetNode(2)
	require.True(s.T(), ok)
	require.GreaterOrEqual(s.T(), transformer.CurrentLoad, 1.05*500)

	substation, ok := g.GetNode(1)
	require.True(s.T(), ok)
	require.InDelta(s.T(), transformer.CurrentLoad, substation.CurrentLoad, 1.0)
}

// TestFailureFailover covers Scenario E: injecting failure on T1 rebinds C
// to T2, zeroes the T1-C flow, and T2-C flow equals C's load.
func (s *OrchestratorSuite) TestFailureFailover() {
	g := network.NewGraph()
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 1, Kind: network.Substation, ParentID: network.NoParent, MaxCapacity: 10000, Active: true, Efficiency: 1}))
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 2, Kind: network.Transformer, ParentID: 1, MaxCapacity: 1000, Active: true, Efficiency: 0.95}))
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 3, Kind: network.Transformer, ParentID: 1, MaxCapacity: 1000, Active: true, Efficiency: 0.95}))
	c := &network.Node{ID: 4, Kind: network.Consumer, ParentID: 2, MaxCapacity: 500, Active: true, Efficiency: 0.98, CurrentLoad: 100}
	require.NoError(s.T(), g.AddNode(c))
	require.NoError(s.T(), g.AddEdge(1, 2, 10, 0.05, 0.99))
	require.NoError(s.T(), g.AddEdge(1, 3, 10, 0.05, 0.99))
	require.NoError(s.T(), g.AddEdge(2, 4, 0.5, 0.2, 0.95))
	require.NoError(s.T(), g.AddEdge(3, 4, 0.5, 0.2, 0.95))

	cfg := simconfig.Default()
	orch := sim.New(g, cfg, nil)

	orch.InjectFailure(2)

	t1, _ := g.GetNode(2)
	require.False(s.T(), t1.Active)
	require.Equal(s.T(), 0.0, t1.CurrentLoad)

	parentID, ok := g.GetParent(4)
	require.True(s.T(), ok)
	require.Equal(s.T(), 3, parentID)

	edgeT1C, _ := g.GetEdge(2, 4)
	require.Equal(s.T(), 0.0, edgeT1C.CurrentFlow)
	edgeT2C, _ := g.GetEdge(3, 4)
	require.Equal(s.T(), c.CurrentLoad, edgeT2C.CurrentFlow)
	require.True(s.T(), c.Active)
}

func (s *OrchestratorSuite) TestInjectFailureIdempotent() {
	g := network.NewGraph()
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 1, Kind: network.Consumer, ParentID: network.NoParent, MaxCapacity: 100, Active: true}))
	orch := sim.New(g, simconfig.Default(), nil)

	orch.InjectFailure(1)
	orch.InjectFailure(1)

	n, _ := g.GetNode(1)
	require.False(s.T(), n.Active)
}

func (s *OrchestratorSuite) TestNormalizeNodeClearsOverload() {
	g := network.NewGraph()
	n := &network.Node{ID: 1, Kind: network.Consumer, ParentID: network.NoParent, MaxCapacity: 1000, Active: true, CurrentLoad: 1500, Efficiency: 0.95}
	require.NoError(s.T(), g.AddNode(n))
	orch := sim.New(g, simconfig.Default(), nil)

	orch.NormalizeNode(1)

	require.False(s.T(), n.IsOverloaded())
	require.Equal(s.T(), 600.0, n.CurrentLoad)
}

// TestReactivationOptimizesConsumerParent covers Scenario F: a transformer
// fails, its consumer migrates to its one alternate, and reactivating the
// failed transformer rebinds the consumer back to whichever of the two now
// scores higher under optimize_consumer_parent's trial-and-restore (here,
// the higher-efficiency one).
func (s *OrchestratorSuite) TestReactivationOptimizesConsumerParent() {
	g := network.NewGraph()
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 1, Kind: network.Substation, ParentID: network.NoParent, MaxCapacity: 10000, Active: true, Efficiency: 1}))
	t1 := &network.Node{ID: 2, Kind: network.Transformer, ParentID: 1, MaxCapacity: 1000, Active: true, Efficiency: 0.98}
	t2 := &network.Node{ID: 3, Kind: network.Transformer, ParentID: 1, MaxCapacity: 1000, Active: true, Efficiency: 0.80}
	require.NoError(s.T(), g.AddNode(t1))
	require.NoError(s.T(), g.AddNode(t2))
	c := &network.Node{ID: 4, Kind: network.Consumer, ParentID: 2, MaxCapacity: 500, Active: true, Efficiency: 0.98, CurrentLoad: 100}
	require.NoError(s.T(), g.AddNode(c))
	require.NoError(s.T(), g.AddEdge(1, 2, 10, 0.05, 0.99))
	require.NoError(s.T(), g.AddEdge(1, 3, 10, 0.05, 0.99))
	require.NoError(s.T(), g.AddEdge(2, 4, 0.5, 0.2, 0.95))
	require.NoError(s.T(), g.AddEdge(3, 4, 0.5, 0.2, 0.95))

	orch := sim.New(g, simconfig.Default(), nil)

	orch.InjectFailure(2)
	parentAfterFailure, ok := g.GetParent(4)
	require.True(s.T(), ok)
	require.Equal(s.T(), 3, parentAfterFailure)

	orch.ReactivateNode(2)

	require.True(s.T(), t1.Active)

	parentAfterReactivation, ok := g.GetParent(4)
	require.True(s.T(), ok)
	require.Equal(s.T(), 2, parentAfterReactivation)

	edgeT1C, _ := g.GetEdge(2, 4)
	require.Equal(s.T(), c.CurrentLoad, edgeT1C.CurrentFlow)
	edgeT2C, _ := g.GetEdge(3, 4)
	require.Equal(s.T(), 0.0, edgeT2C.CurrentFlow)
}

func (s *OrchestratorSuite) TestInjectManualLoad() {
	g := network.NewGraph()
	c := &network.Node{ID: 1, Kind: network.Consumer, ParentID: network.NoParent, MaxCapacity: 1000, Active: true, Efficiency: 0.95, CurrentLoad: 100}
	require.NoError(s.T(), g.AddNode(c))
	orch := sim.New(g, simconfig.Default(), nil)

	orch.InjectManualLoad(1, 1600)

	require.Equal(s.T(), 1600.0, c.CurrentLoad)
	require.True(s.T(), c.ManualLoad)

	stats := orch.GetQueueStatistics()
	require.Equal(s.T(), 1, stats.Total)
	require.Equal(s.T(), 1, stats.ByPriority["CRITICAL"])
}
