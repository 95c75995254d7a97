package structures_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BrunoSantos751/EcoGrid/structures"
)

type PriorityQueueSuite struct {
	suite.Suite
}

func TestPriorityQueueSuite(t *testing.T) {
	suite.Run(t, new(PriorityQueueSuite))
}

// TestPopOrder covers Scenario B: pushing LOW, CRITICAL, MEDIUM pops in
// priority order 0, 2, 3.
func (s *PriorityQueueSuite) TestPopOrder() {
	q := structures.NewPriorityQueue(0)
	require.True(s.T(), q.Push(structures.Event{Priority: structures.Low, Type: structures.LoadChange, NodeID: 1}, false))
	require.True(s.T(), q.Push(structures.Event{Priority: structures.Critical, Type: structures.NodeFailure, NodeID: 99}, false))
	require.True(s.T(), q.Push(structures.Event{Priority: structures.Medium, Type: structures.Maintenance, NodeID: 2}, false))

	ev1, ok := q.Pop()
	require.True(s.T(), ok)
	require.Equal(s.T(), structures.Critical, ev1.Priority)

	ev2, ok := q.Pop()
	require.True(s.T(), ok)
	require.Equal(s.T(), structures.Medium, ev2.Priority)

	ev3, ok := q.Pop()
	require.True(s.T(), ok)
	require.Equal(s.T(), structures.Low, ev3.Priority)
}

// TestCapacityRejectsLowWhenFull verifies pushing K+1 LOWs into a
// max_size=K queue leaves size=K and rejects the last.
func (s *PriorityQueueSuite) TestCapacityRejectsLowWhenFull() {
	q := structures.NewPriorityQueue(3)
	for i := 0; i < 3; i++ {
		require.True(s.T(), q.Push(structures.Event{Priority: structures.Low, Type: structures.LoadChange, NodeID: i}, false))
	}
	ok := q.Push(structures.Event{Priority: structures.Low, Type: structures.LoadChange, NodeID: 99}, false)
	require.False(s.T(), ok)
	require.Equal(s.T(), 3, q.Len())
}

// TestCapacityEvictsLowForHigherPriority verifies a full queue evicts a LOW
// entry to admit a non-LOW push.
func (s *PriorityQueueSuite) TestCapacityEvictsLowForHigherPriority() {
	q := structures.NewPriorityQueue(2)
	require.True(s.T(), q.Push(structures.Event{Priority: structures.Low, Type: structures.LoadChange, NodeID: 1}, false))
	require.True(s.T(), q.Push(structures.Event{Priority: structures.Low, Type: structures.LoadChange, NodeID: 2}, false))
	require.True(s.T(), q.Push(structures.Event{Priority: structures.Critical, Type: structures.NodeFailure, NodeID: 3}, false))

	require.Equal(s.T(), 2, q.Len())
	ev, ok := q.Peek()
	require.True(s.T(), ok)
	require.Equal(s.T(), structures.Critical, ev.Priority)
}

// TestDedup verifies checkDuplicates removes any existing event sharing
// (NodeID, Type) before inserting.
func (s *PriorityQueueSuite) TestDedup() {
	q := structures.NewPriorityQueue(0)
	q.Push(structures.Event{Priority: structures.Low, Type: structures.OverloadWarning, NodeID: 5}, true)
	q.Push(structures.Event{Priority: structures.Critical, Type: structures.OverloadWarning, NodeID: 5}, true)

	require.Equal(s.T(), 1, q.Len())
	ev, ok := q.Peek()
	require.True(s.T(), ok)
	require.Equal(s.T(), structures.Critical, ev.Priority)
}

// TestClearOldEvents removes events older than maxAgeSeconds.
func (s *PriorityQueueSuite) TestClearOldEvents() {
	q := structures.NewPriorityQueue(0)
	now := time.Now()
	q.Push(structures.Event{Priority: structures.Low, Type: structures.LoadChange, NodeID: 1, Timestamp: now.Add(-10 * time.Minute)}, false)
	q.Push(structures.Event{Priority: structures.Low, Type: structures.LoadChange, NodeID: 2, Timestamp: now}, false)

	removed := q.ClearOldEvents(300, now)
	require.Equal(s.T(), 1, removed)
	require.Equal(s.T(), 1, q.Len())
}

// TestUpdatePriority replaces only the priority of a matching event.
func (s *PriorityQueueSuite) TestUpdatePriority() {
	q := structures.NewPriorityQueue(0)
	q.Push(structures.Event{Priority: structures.Medium, Type: structures.OverloadWarning, NodeID: 1}, false)

	require.True(s.T(), q.UpdatePriority(1, structures.OverloadWarning, structures.Critical))
	ev, ok := q.Peek()
	require.True(s.T(), ok)
	require.Equal(s.T(), structures.Critical, ev.Priority)
}
