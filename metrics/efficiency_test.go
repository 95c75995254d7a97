package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BrunoSantos751/EcoGrid/metrics"
	"github.com/BrunoSantos751/EcoGrid/network"
)

type EfficiencySuite struct {
	suite.Suite
}

func TestEfficiencySuite(t *testing.T) {
	suite.Run(t, new(EfficiencySuite))
}

func (s *EfficiencySuite) TestZeroWhenEmpty() {
	g := network.NewGraph()
	snap := metrics.Compute(g)
	require.Equal(s.T(), 0.0, snap.GlobalEfficiency)
}

// TestSaturatesAtCeiling covers invariant 9: efficiency is in [0, 1000].
func (s *EfficiencySuite) TestSaturatesAtCeiling() {
	g := network.NewGraph()
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 1, Kind: network.Substation, ParentID: network.NoParent, MaxCapacity: 1000, Active: true, Efficiency: 1.0, CurrentLoad: 500}))

	snap := metrics.Compute(g)
	require.GreaterOrEqual(s.T(), snap.GlobalEfficiency, 0.0)
	require.LessOrEqual(s.T(), snap.GlobalEfficiency, metrics.Ceiling)
	require.Equal(s.T(), metrics.Ceiling, snap.GlobalEfficiency)
}

func (s *EfficiencySuite) TestNeverNegative() {
	g := network.NewGraph()
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 1, Kind: network.Substation, ParentID: network.NoParent, MaxCapacity: 1000, Active: true, Efficiency: 0.5, CurrentLoad: 500}))
	snap := metrics.Compute(g)
	require.GreaterOrEqual(s.T(), snap.GlobalEfficiency, 0.0)
}
