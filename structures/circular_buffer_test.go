package structures_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BrunoSantos751/EcoGrid/structures"
)

type CircularBufferSuite struct {
	suite.Suite
}

func TestCircularBufferSuite(t *testing.T) {
	suite.Run(t, new(CircularBufferSuite))
}

func (s *CircularBufferSuite) TestAppendWithinCapacity() {
	buf := structures.NewCircularBuffer(3)
	buf.Append(structures.Reading{Tick: 1, Voltage: 220})
	buf.Append(structures.Reading{Tick: 2, Voltage: 221})

	require.Equal(s.T(), 2, buf.Len())
	latest, ok := buf.Latest()
	require.True(s.T(), ok)
	require.Equal(s.T(), uint64(2), latest.Tick)
}

func (s *CircularBufferSuite) TestWrapsAtCapacity() {
	buf := structures.NewCircularBuffer(2)
	buf.Append(structures.Reading{Tick: 1})
	buf.Append(structures.Reading{Tick: 2})
	buf.Append(structures.Reading{Tick: 3})

	require.Equal(s.T(), 2, buf.Len())
	ordered := buf.Ordered()
	require.Equal(s.T(), uint64(2), ordered[0].Tick)
	require.Equal(s.T(), uint64(3), ordered[1].Tick)
}

func (s *CircularBufferSuite) TestEmptyLatest() {
	buf := structures.NewCircularBuffer(4)
	_, ok := buf.Latest()
	require.False(s.T(), ok)
}
