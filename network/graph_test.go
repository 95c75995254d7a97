package network_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BrunoSantos751/EcoGrid/network"
)

type GraphSuite struct {
	suite.Suite
}

func TestGraphSuite(t *testing.T) {
	suite.Run(t, new(GraphSuite))
}

func (s *GraphSuite) TestAddNodeLinksHierarchy() {
	g := network.NewGraph()
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 1, Kind: network.Substation, ParentID: network.NoParent, MaxCapacity: 1000}))
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 2, Kind: network.Transformer, ParentID: 1, MaxCapacity: 500}))
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 3, Kind: network.Consumer, ParentID: 2, MaxCapacity: 50}))

	require.Equal(s.T(), []int{2}, g.GetChildren(1))
	require.Equal(s.T(), []int{3}, g.GetChildren(2))
	parent, ok := g.GetParent(3)
	require.True(s.T(), ok)
	require.Equal(s.T(), 2, parent)
}

func (s *GraphSuite) TestAddNodeRejectsInvalidParent() {
	g := network.NewGraph()
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 1, Kind: network.Substation, ParentID: network.NoParent, MaxCapacity: 1000}))
	err := g.AddNode(&network.Node{ID: 2, Kind: network.Transformer, ParentID: network.NoParent, MaxCapacity: 500})
	require.ErrorIs(s.T(), err, network.ErrInvalidParent)
}

func (s *GraphSuite) TestAddNodeRejectsDuplicate() {
	g := network.NewGraph()
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 1, Kind: network.Substation, ParentID: network.NoParent, MaxCapacity: 1000}))
	err := g.AddNode(&network.Node{ID: 1, Kind: network.Substation, ParentID: network.NoParent, MaxCapacity: 1000})
	require.ErrorIs(s.T(), err, network.ErrDuplicateNode)
}

func (s *GraphSuite) TestAddEdgeIsBidirectional() {
	g := network.NewGraph()
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 1, Kind: network.Substation, ParentID: network.NoParent, MaxCapacity: 1000}))
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 2, Kind: network.Transformer, ParentID: 1, MaxCapacity: 500}))
	require.NoError(s.T(), g.AddEdge(1, 2, 10, 0.1, 0.98))

	fwd, ok := g.GetEdge(1, 2)
	require.True(s.T(), ok)
	rev, ok := g.GetEdge(2, 1)
	require.True(s.T(), ok)
	require.Equal(s.T(), fwd.Distance, rev.Distance)
	require.Equal(s.T(), []int{2}, g.GetNeighbors(1))
	require.Equal(s.T(), []int{1}, g.GetNeighbors(2))
}

func (s *GraphSuite) TestSetParentRebinds() {
	g := network.NewGraph()
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 1, Kind: network.Substation, ParentID: network.NoParent, MaxCapacity: 1000}))
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 2, Kind: network.Transformer, ParentID: 1, MaxCapacity: 500}))
	require.NoError(s.T(), g.AddNode(&network.Node{ID: 3, Kind: network.Transformer, ParentID: 1, MaxCapacity: 500}))

	require.NoError(s.T(), g.SetParent(2, 3))
	require.Equal(s.T(), []int{3}, g.GetChildren(1))
	parent, ok := g.GetParent(2)
	require.True(s.T(), ok)
	require.Equal(s.T(), 3, parent)
}

func (s *GraphSuite) TestAvailableCapacityAndOverload() {
	n := &network.Node{MaxCapacity: 100, CurrentLoad: 150}
	require.Equal(s.T(), 0.0, n.AvailableCapacity())
	require.True(s.T(), n.IsOverloaded())

	n2 := &network.Node{MaxCapacity: 100, CurrentLoad: 40}
	require.Equal(s.T(), 60.0, n2.AvailableCapacity())
	require.False(s.T(), n2.IsOverloaded())
}
