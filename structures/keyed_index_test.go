package structures_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BrunoSantos751/EcoGrid/structures"
)

type idOnly struct{ id int }

func (n *idOnly) NodeID() int { return n.id }

type KeyedIndexSuite struct {
	suite.Suite
}

func TestKeyedIndexSuite(t *testing.T) {
	suite.Run(t, new(KeyedIndexSuite))
}

func (s *KeyedIndexSuite) TestInsertSearchDelete() {
	idx := structures.NewKeyedIndex()
	idx.Insert(&idOnly{id: 5})
	idx.Insert(&idOnly{id: 2})
	idx.Insert(&idOnly{id: 8})

	v, ok := idx.Search(2)
	require.True(s.T(), ok)
	require.Equal(s.T(), 2, v.NodeID())

	idx.Delete(2)
	_, ok = idx.Search(2)
	require.False(s.T(), ok)
	require.Equal(s.T(), 2, idx.Len())
}

func (s *KeyedIndexSuite) TestOverwriteSameKey() {
	idx := structures.NewKeyedIndex()
	idx.Insert(&idOnly{id: 1})
	idx.Insert(&idOnly{id: 1})
	require.Equal(s.T(), 1, idx.Len())
}

func (s *KeyedIndexSuite) TestManyInsertsStayBalanced() {
	idx := structures.NewKeyedIndex()
	for i := 0; i < 200; i++ {
		idx.Insert(&idOnly{id: i})
	}
	for i := 0; i < 200; i++ {
		v, ok := idx.Search(i)
		require.True(s.T(), ok)
		require.Equal(s.T(), i, v.NodeID())
	}
}
