package structures_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BrunoSantos751/EcoGrid/structures"
)

type fakeNode struct {
	id       int
	capacity float64
}

func (n *fakeNode) NodeID() int                     { return n.id }
func (n *fakeNode) AvailableCapacityValue() float64 { return n.capacity }

type CapacityIndexSuite struct {
	suite.Suite
}

func TestCapacityIndexSuite(t *testing.T) {
	suite.Run(t, new(CapacityIndexSuite))
}

// TestOrderedTraversal covers invariant 4: in-order traversal is
// monotonically non-decreasing in available_capacity.
func (s *CapacityIndexSuite) TestOrderedTraversal() {
	idx := structures.NewCapacityIndex()
	idx.Insert(&fakeNode{id: 1, capacity: 50})
	idx.Insert(&fakeNode{id: 2, capacity: 10})
	idx.Insert(&fakeNode{id: 3, capacity: 30})
	idx.Insert(&fakeNode{id: 4, capacity: 30})

	all := idx.GetAllSorted()
	require.Len(s.T(), all, 4)
	for i := 1; i < len(all); i++ {
		require.LessOrEqual(s.T(), all[i-1].AvailableCapacityValue(), all[i].AvailableCapacityValue())
	}
}

func (s *CapacityIndexSuite) TestFindWithCapacityPrefersLargest() {
	idx := structures.NewCapacityIndex()
	idx.Insert(&fakeNode{id: 1, capacity: 50})
	idx.Insert(&fakeNode{id: 2, capacity: 200})
	idx.Insert(&fakeNode{id: 3, capacity: 80})

	found, ok := idx.FindWithCapacity(60)
	require.True(s.T(), ok)
	require.Equal(s.T(), 2, found.NodeID())
}

func (s *CapacityIndexSuite) TestFindWithCapacityNoneQualifies() {
	idx := structures.NewCapacityIndex()
	idx.Insert(&fakeNode{id: 1, capacity: 10})

	_, ok := idx.FindWithCapacity(500)
	require.False(s.T(), ok)
}

func (s *CapacityIndexSuite) TestUpdateRepositions() {
	idx := structures.NewCapacityIndex()
	n := &fakeNode{id: 1, capacity: 10}
	idx.Insert(n)
	idx.Insert(&fakeNode{id: 2, capacity: 20})

	n.capacity = 100
	idx.Update(n)

	require.Equal(s.T(), 2, idx.Len())
	all := idx.GetAllSorted()
	require.Equal(s.T(), 1, all[len(all)-1].NodeID())
}

func (s *CapacityIndexSuite) TestRemove() {
	idx := structures.NewCapacityIndex()
	idx.Insert(&fakeNode{id: 1, capacity: 10})
	idx.Insert(&fakeNode{id: 2, capacity: 20})

	idx.Remove(1)
	require.Equal(s.T(), 1, idx.Len())
	_, ok := idx.FindWithCapacity(15)
	require.True(s.T(), ok)
}
