package structures

import (
	"container/heap"
	"time"
)

// Priority orders Events: lower value sorts first (pops first).
type Priority int

const (
	Critical Priority = 0
	High     Priority = 1
	Medium   Priority = 2
	Low      Priority = 3
)

// String renders the priority class name used by GetStatistics.
func (p Priority) String() string {
	switch p {
	case Critical:
		return "CRITICAL"
	case High:
		return "HIGH"
	case Medium:
		return "MEDIUM"
	case Low:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// EventType tags the condition an Event reports.
type EventType int

const (
	LoadChange EventType = iota
	NodeFailure
	Maintenance
	OverloadWarning
)

// String renders the event type name used by GetStatistics.
func (t EventType) String() string {
	switch t {
	case LoadChange:
		return "LOAD_CHANGE"
	case NodeFailure:
		return "NODE_FAILURE"
	case Maintenance:
		return "MAINTENANCE"
	case OverloadWarning:
		return "OVERLOAD_WARNING"
	default:
		return "UNKNOWN"
	}
}

// Event is one entry in the PriorityQueue.
type Event struct {
	Priority  Priority
	Timestamp time.Time
	Type      EventType
	NodeID    int
	Payload   map[string]interface{}
}

// eventHeap is the container/heap-compatible backing slice. Ties within a
// priority class are left unordered by design (spec: "FIFO within a
// priority class is not guaranteed").
type eventHeap []Event

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].Priority < h[j].Priority }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(Event)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PriorityQueue is a capped, dedup-aware binary min-heap of Events.
type PriorityQueue struct {
	h       eventHeap
	maxSize int // 0 means unbounded
}

// NewPriorityQueue returns an empty queue. maxSize <= 0 means unbounded.
func NewPriorityQueue(maxSize int) *PriorityQueue {
	return &PriorityQueue{maxSize: maxSize}
}

// Len returns the number of events currently queued.
func (q *PriorityQueue) Len() int { return q.h.Len() }

// Push inserts e. If checkDuplicates is true, any existing event sharing
// e's (NodeID, Type) is removed first. If the queue is capped and full, a
// LOW event is evicted to admit a non-LOW event; if no LOW can be evicted
// (or e itself is LOW), the push is rejected. Returns whether e was
// inserted.
func (q *PriorityQueue) Push(e Event, checkDuplicates bool) bool {
	if checkDuplicates {
		q.removeMatching(func(ev Event) bool {
			return ev.NodeID == e.NodeID && ev.Type == e.Type
		})
	}

	if q.maxSize > 0 && q.h.Len() >= q.maxSize {
		if e.Priority == Low {
			return false
		}
		if !q.evictOneLow() {
			return false
		}
	}

	heap.Push(&q.h, e)
	return true
}

// evictOneLow removes one LOW-priority event to make room, returning
// whether one was found.
func (q *PriorityQueue) evictOneLow() bool {
	for i, ev := range q.h {
		if ev.Priority == Low {
			heap.Remove(&q.h, i)
			return true
		}
	}
	return false
}

// Pop removes and returns the minimum-priority event.
func (q *PriorityQueue) Pop() (Event, bool) {
	if q.h.Len() == 0 {
		return Event{}, false
	}
	return heap.Pop(&q.h).(Event), true
}

// Peek returns the minimum-priority event without removing it.
func (q *PriorityQueue) Peek() (Event, bool) {
	if q.h.Len() == 0 {
		return Event{}, false
	}
	return q.h[0], true
}

// GetAllEvents returns a sorted snapshot copy of the queue, ascending by
// priority. It does not reflect the queue's internal order and is not a
// live view.
func (q *PriorityQueue) GetAllEvents() []Event {
	out := make([]Event, len(q.h))
	copy(out, q.h)
	insertionSortByPriority(out)
	return out
}

func insertionSortByPriority(events []Event) {
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j].Priority < events[j-1].Priority; j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
}

// GetEventsByPriority returns every queued event with the given priority.
func (q *PriorityQueue) GetEventsByPriority(p Priority) []Event {
	var out []Event
	for _, ev := range q.h {
		if ev.Priority == p {
			out = append(out, ev)
		}
	}
	return out
}

// GetEventsByNode returns every queued event for the given node id.
func (q *PriorityQueue) GetEventsByNode(nodeID int) []Event {
	var out []Event
	for _, ev := range q.h {
		if ev.NodeID == nodeID {
			out = append(out, ev)
		}
	}
	return out
}

// HasEvent reports whether an event matching (nodeID, eventType) is queued.
func (q *PriorityQueue) HasEvent(nodeID int, eventType EventType) bool {
	for _, ev := range q.h {
		if ev.NodeID == nodeID && ev.Type == eventType {
			return true
		}
	}
	return false
}

// RemoveEvent removes the event matching (nodeID, eventType), if any.
// Returns whether an event was removed.
func (q *PriorityQueue) RemoveEvent(nodeID int, eventType EventType) bool {
	removed := false
	q.removeMatching(func(ev Event) bool {
		if removed {
			return false
		}
		if ev.NodeID == nodeID && ev.Type == eventType {
			removed = true
			return true
		}
		return false
	})
	return removed
}

// UpdatePriority replaces the priority of the event matching (nodeID,
// eventType), preserving its timestamp and payload. Returns whether a
// matching event was found.
func (q *PriorityQueue) UpdatePriority(nodeID int, eventType EventType, newPriority Priority) bool {
	for i := range q.h {
		if q.h[i].NodeID == nodeID && q.h[i].Type == eventType {
			q.h[i].Priority = newPriority
			heap.Init(&q.h)
			return true
		}
	}
	return false
}

// ClearOldEvents removes events older than maxAgeSeconds, measured against
// now, and returns how many were removed.
func (q *PriorityQueue) ClearOldEvents(maxAgeSeconds float64, now time.Time) int {
	return q.removeMatching(func(ev Event) bool {
		return now.Sub(ev.Timestamp).Seconds() >= maxAgeSeconds
	})
}

// ClearByPriority removes every event of the given priority class and
// returns how many were removed.
func (q *PriorityQueue) ClearByPriority(p Priority) int {
	return q.removeMatching(func(ev Event) bool { return ev.Priority == p })
}

// ClearByFilter removes every event for which pred returns true, and
// returns how many were removed.
func (q *PriorityQueue) ClearByFilter(pred func(Event) bool) int {
	return q.removeMatching(pred)
}

// removeMatching drops every event for which pred returns true and rebuilds
// the heap, returning the number removed.
func (q *PriorityQueue) removeMatching(pred func(Event) bool) int {
	kept := q.h[:0:0]
	removed := 0
	for _, ev := range q.h {
		if pred(ev) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	q.h = kept
	heap.Init(&q.h)
	return removed
}

// Statistics summarizes the queue's current contents.
type Statistics struct {
	Total      int
	ByPriority map[string]int
	ByType     map[string]int
	OldestTS   time.Time
	NewestTS   time.Time
}

// GetStatistics computes a Statistics snapshot over the current queue.
func (q *PriorityQueue) GetStatistics() Statistics {
	stats := Statistics{
		ByPriority: make(map[string]int),
		ByType:     make(map[string]int),
	}
	for i, ev := range q.h {
		stats.Total++
		stats.ByPriority[ev.Priority.String()]++
		stats.ByType[ev.Type.String()]++
		if i == 0 || ev.Timestamp.Before(stats.OldestTS) {
			stats.OldestTS = ev.Timestamp
		}
		if i == 0 || ev.Timestamp.After(stats.NewestTS) {
			stats.NewestTS = ev.Timestamp
		}
	}
	return stats
}
