package redistribute_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BrunoSantos751/EcoGrid/network"
	"github.com/BrunoSantos751/EcoGrid/redistribute"
)

type RedistributeSuite struct {
	suite.Suite
}

func TestRedistributeSuite(t *testing.T) {
	suite.Run(t, new(RedistributeSuite))
}

var testCfg = redistribute.Config{
	Threshold:         0.60,
	Target:            0.50,
	MinAmount:         10.0,
	MinLoadDifference: 0.15,
	MaxPerCyclePct:    0.20,
}

// TestThresholdTrigger covers Scenario D: a transformer above THRESHOLD
// sheds part of a shared consumer's load to an alternate whose load_pct is
// far enough below it, while the consumer's total served load is conserved.
func (s *RedistributeSuite) TestThresholdTrigger() {
	g := network.NewGraph()
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 1, Kind: network.Substation, ParentID: network.NoParent, MaxCapacity: 100000, Active: true, Efficiency: 1}))
	ta := &network.Node{ID: 2, Kind: network.Transformer, ParentID: 1, MaxCapacity: 1000, Active: true, CurrentLoad: 650, Efficiency: 0.95}
	tb := &network.Node{ID: 3, Kind: network.Transformer, ParentID: 1, MaxCapacity: 1000, Active: true, CurrentLoad: 400, Efficiency: 0.95}
	require.NoError(s.T(), g.AddNode(ta))
	require.NoError(s.T(), g.AddNode(tb))
	cx := &network.Node{ID: 4, Kind: network.Consumer, ParentID: 2, MaxCapacity: 500, Active: true, CurrentLoad: 200, Efficiency: 0.98}
	require.NoError(s.T(), g.AddNode(cx))

	require.NoError(s.T(), g.AddEdge(2, 4, 0.5, 0.1, 0.97))
	require.NoError(s.T(), g.AddEdge(3, 4, 0.5, 0.1, 0.97))
	edgeTaCx, _ := g.GetEdge(2, 4)
	edgeTaCx.CurrentFlow = 200

	r := redistribute.New(g, testCfg)
	var moved float64
	for tick := uint64(1); tick <= 3; tick++ {
		actions := r.CheckAndRedistribute(tick * 10)
		for _, a := range actions {
			moved += a.Amount
		}
	}

	edgeTaCxAfter, _ := g.GetEdge(2, 4)
	edgeTbCxAfter, _ := g.GetEdge(3, 4)
	total := edgeTaCxAfter.CurrentFlow + edgeTbCxAfter.CurrentFlow
	require.InDelta(s.T(), 200.0, total, 0.5)
	require.Greater(s.T(), moved, 0.0)
}

func (s *RedistributeSuite) TestHysteresisBlocksCloseAlternate() {
	g := network.NewGraph()
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 1, Kind: network.Substation, ParentID: network.NoParent, MaxCapacity: 100000, Active: true, Efficiency: 1}))
	ta := &network.Node{ID: 2, Kind: network.Transformer, ParentID: 1, MaxCapacity: 1000, Active: true, CurrentLoad: 650, Efficiency: 0.95}
	tb := &network.Node{ID: 3, Kind: network.Transformer, ParentID: 1, MaxCapacity: 1000, Active: true, CurrentLoad: 580, Efficiency: 0.95}
	require.NoError(s.T(), g.AddNode(ta))
	require.NoError(s.T(), g.AddNode(tb))
	cx := &network.Node{ID: 4, Kind: network.Consumer, ParentID: 2, MaxCapacity: 500, Active: true, CurrentLoad: 200, Efficiency: 0.98}
	require.NoError(s.T(), g.AddNode(cx))
	require.NoError(s.T(), g.AddEdge(2, 4, 0.5, 0.1, 0.97))
	require.NoError(s.T(), g.AddEdge(3, 4, 0.5, 0.1, 0.97))
	edgeTaCx, _ := g.GetEdge(2, 4)
	edgeTaCx.CurrentFlow = 200

	r := redistribute.New(g, testCfg)
	actions := r.CheckAndRedistribute(10)
	require.Empty(s.T(), actions)
}
