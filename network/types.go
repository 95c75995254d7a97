// Package network defines the hierarchical graph data model for EcoGrid+:
// PowerNode, PowerLine and the Graph that owns them.
//
// The Graph overlays two structures on the same id space: an undirected
// physical adjacency (every PowerLine is stored as a pair of directed
// records, one per direction) and a three-level tree (parent_id/children_ids)
// used for rollup, failover and hierarchy-checked transfers. The tree is
// represented by ids, not object handles, so there are no reference cycles.
//
// All mutations acquire a single write lock; queries acquire a read lock,
// in the shape of lvlath/graph/core.Graph.
package network

import (
	"errors"
	"sort"
	"sync"

	"github.com/BrunoSantos751/EcoGrid/structures"
)

// ErrUnknownNode indicates an operation referenced a node id that has no
// Graph entry.
var ErrUnknownNode = errors.New("network: unknown node")

// ErrDuplicateNode indicates AddNode was called with an id already present.
var ErrDuplicateNode = errors.New("network: duplicate node id")

// ErrInvalidParent indicates a node's declared parent does not satisfy the
// one-level-above hierarchy rule.
var ErrInvalidParent = errors.New("network: invalid parent for node kind")

// NodeKind tags a PowerNode's position in the three-level hierarchy.
type NodeKind int

const (
	// Substation is level 1, the root of the hierarchy.
	Substation NodeKind = iota + 1
	// Transformer is level 2, child of a Substation.
	Transformer
	// Consumer is level 3, child of a Transformer.
	Consumer
)

// Level returns the hierarchy level used by can-transfer-to comparisons
// (Substation=1 < Transformer=2 < Consumer=3).
func (k NodeKind) Level() int {
	return int(k)
}

// String renders the kind for logs and snapshots.
func (k NodeKind) String() string {
	switch k {
	case Substation:
		return "SUBSTATION"
	case Transformer:
		return "TRANSFORMER"
	case Consumer:
		return "CONSUMER"
	default:
		return "UNKNOWN"
	}
}

// NoParent is the sentinel ParentID for a node with no hierarchical parent
// (only ever a Substation in a well-formed graph).
const NoParent = -1

// Node is one element of the grid: a substation, transformer or consumer.
type Node struct {
	ID          int
	Kind        NodeKind
	MaxCapacity float64
	CurrentLoad float64
	Active      bool
	X, Y        float64

	// Efficiency is never mutated by runtime logic once set.
	Efficiency float64

	ParentID     int // NoParent if none
	ChildrenIDs  []int
	NominalVolts float64
	Current      float64 // derived from CurrentLoad and NominalVolts

	// ManualLoad marks a CONSUMER whose load was pinned by an external
	// agent; the sensor fabric must not overwrite it.
	ManualLoad bool

	LastReactivationTick uint64

	Readings *structures.CircularBuffer

	// clock counts readings appended to this node, monotonically.
	clock uint64
}

// NodeID implements structures.Keyed / structures.Capacitied so a *Node can
// be stored directly in a KeyedIndex or CapacityIndex.
func (n *Node) NodeID() int { return n.ID }

// AvailableCapacityValue implements structures.Capacitied.
func (n *Node) AvailableCapacityValue() float64 { return n.AvailableCapacity() }

// AvailableCapacity is max(0, MaxCapacity - CurrentLoad).
func (n *Node) AvailableCapacity() float64 {
	avail := n.MaxCapacity - n.CurrentLoad
	if avail < 0 {
		return 0
	}
	return avail
}

// LoadPercentage is CurrentLoad / MaxCapacity (0 if MaxCapacity is 0).
func (n *Node) LoadPercentage() float64 {
	if n.MaxCapacity <= 0 {
		return 0
	}
	return n.CurrentLoad / n.MaxCapacity
}

// IsOverloaded reports whether CurrentLoad exceeds MaxCapacity.
func (n *Node) IsOverloaded() bool {
	return n.CurrentLoad > n.MaxCapacity
}

// RecordReading appends a reading to the node's buffer and advances its
// internal clock.
func (n *Node) RecordReading(tick uint64, voltage, current float64) {
	n.clock++
	n.Readings.Append(structures.Reading{Tick: tick, Voltage: voltage, Current: current})
}

// Clock returns the number of readings ever recorded for this node.
func (n *Node) Clock() uint64 { return n.clock }

// Edge is one directed slot of a physical line between two nodes. A
// PowerLine is always inserted as two Edge records with identical physical
// parameters, one per direction (see Graph.AddEdge).
//
// CurrentFlow carries shared semantics: it records the kW this directed
// side is carrying. The transformer->consumer direction is authoritative
// for redistribution flow and is the side roll-up and redistribution read;
// the balancer writes both sides, and the efficiency metric's edge-loss
// term looks at both.
type Edge struct {
	SourceID    int
	TargetID    int
	Distance    float64 // km
	Resistance  float64 // ohms
	Efficiency  float64 // (0,1]
	CurrentFlow float64 // kW
}

// Weight is the routing cost used by display-only heuristics:
// distance * resistance / efficiency.
func (e *Edge) Weight() float64 {
	if e.Efficiency <= 0 {
		return 0
	}
	return e.Distance * e.Resistance / e.Efficiency
}

// LossAtAmps returns the resistive loss in kW for the given current in
// amperes: I^2 * resistance, converted from watts to kW.
func (e *Edge) LossAtAmps(amps float64) float64 {
	return amps * amps * e.Resistance / 1000.0
}

// Graph is the owner of all Nodes and Edges: an id->Node map, an id->[]Edge
// adjacency (outgoing edges per source), and an ordered list of substation
// (root) ids.
type Graph struct {
	mu sync.RWMutex

	nodes     map[int]*Node
	adjacency map[int][]*Edge          // sourceID -> outgoing edges, insertion order
	edgeIndex map[[2]int]*Edge         // (sourceID,targetID) -> edge, O(1) GetEdge
	roots     []int                    // substation ids, insertion order
	order     []int                    // all node ids, insertion order
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:     make(map[int]*Node),
		adjacency: make(map[int][]*Edge),
		edgeIndex: make(map[[2]int]*Edge),
	}
}

// AddNode registers n in the graph and links it into the hierarchy: a
// SUBSTATION with no parent becomes a root; any other node is appended to
// its parent's ChildrenIDs. Returns ErrDuplicateNode if the id is already
// present and ErrInvalidParent if the declared parent does not satisfy the
// one-level-above rule.
func (g *Graph) AddNode(n *Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[n.ID]; exists {
		return ErrDuplicateNode
	}

	if n.Readings == nil {
		n.Readings = structures.NewCircularBuffer(24)
	}

	switch n.Kind {
	case Substation:
		if n.ParentID != NoParent {
			return ErrInvalidParent
		}
		g.roots = append(g.roots, n.ID)
	case Transformer:
		if n.ParentID == NoParent {
			return ErrInvalidParent
		}
		parent, ok := g.nodes[n.ParentID]
		if !ok || parent.Kind != Substation {
			return ErrInvalidParent
		}
		parent.ChildrenIDs = append(parent.ChildrenIDs, n.ID)
	case Consumer:
		if n.ParentID != NoParent {
			parent, ok := g.nodes[n.ParentID]
			if !ok || parent.Kind != Transformer {
				return ErrInvalidParent
			}
			parent.ChildrenIDs = append(parent.ChildrenIDs, n.ID)
		}
	default:
		return ErrInvalidParent
	}

	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	if _, ok := g.adjacency[n.ID]; !ok {
		g.adjacency[n.ID] = nil
	}

	return nil
}

// AddEdge inserts a PowerLine between u and v: two directed Edge records
// with identical physical parameters. Returns ErrUnknownNode if either
// endpoint is missing.
func (g *Graph) AddEdge(u, v int, distance, resistance, efficiency float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[u]; !ok {
		return ErrUnknownNode
	}
	if _, ok := g.nodes[v]; !ok {
		return ErrUnknownNode
	}

	fwd := &Edge{SourceID: u, TargetID: v, Distance: distance, Resistance: resistance, Efficiency: efficiency}
	rev := &Edge{SourceID: v, TargetID: u, Distance: distance, Resistance: resistance, Efficiency: efficiency}

	g.adjacency[u] = append(g.adjacency[u], fwd)
	g.adjacency[v] = append(g.adjacency[v], rev)
	g.edgeIndex[[2]int{u, v}] = fwd
	g.edgeIndex[[2]int{v, u}] = rev

	return nil
}

// GetNode returns the node with the given id.
func (g *Graph) GetNode(id int) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// GetNeighbors returns the ids reachable by one outgoing edge from id, in
// adjacency insertion order.
func (g *Graph) GetNeighbors(id int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edges := g.adjacency[id]
	out := make([]int, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.TargetID)
	}
	return out
}

// NeighborEdges returns the outgoing edges from id, in adjacency insertion
// order. The returned slice shares backing storage with the graph and must
// not be mutated by callers beyond their Edge fields.
func (g *Graph) NeighborEdges(id int) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.adjacency[id]
}

// GetEdge returns the directed edge u->v, if present.
func (g *Graph) GetEdge(u, v int) (*Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edgeIndex[[2]int{u, v}]
	return e, ok
}

// GetChildren returns the ChildrenIDs of id.
func (g *Graph) GetChildren(id int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return n.ChildrenIDs
}

// GetParent returns the ParentID of id, or (NoParent, false) if id is
// unknown or has no parent.
func (g *Graph) GetParent(id int) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok || n.ParentID == NoParent {
		return NoParent, false
	}
	return n.ParentID, true
}

// SetParent rebinds id's ParentID, removing it from its old parent's
// ChildrenIDs and appending it to the new parent's. Used by failover and
// reactivation to rebind consumers/transformers.
func (g *Graph) SetParent(id, newParentID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	if newParentID != NoParent {
		if _, ok := g.nodes[newParentID]; !ok {
			return ErrUnknownNode
		}
	}

	if n.ParentID != NoParent {
		if oldParent, ok := g.nodes[n.ParentID]; ok {
			oldParent.ChildrenIDs = removeID(oldParent.ChildrenIDs, id)
		}
	}
	n.ParentID = newParentID
	if newParentID != NoParent {
		newParent := g.nodes[newParentID]
		newParent.ChildrenIDs = append(newParent.ChildrenIDs, id)
	}

	return nil
}

func removeID(ids []int, target int) []int {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// Nodes returns a read-only snapshot of the node map.
func (g *Graph) Nodes() map[int]*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[int]*Node, len(g.nodes))
	for id, n := range g.nodes {
		out[id] = n
	}
	return out
}

// AdjList returns a read-only snapshot of the adjacency map.
func (g *Graph) AdjList() map[int][]*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[int][]*Edge, len(g.adjacency))
	for id, edges := range g.adjacency {
		cp := make([]*Edge, len(edges))
		copy(cp, edges)
		out[id] = cp
	}
	return out
}

// RootNodes returns the substation ids, in insertion order.
func (g *Graph) RootNodes() []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]int, len(g.roots))
	copy(out, g.roots)
	return out
}

// NodesByKind returns every node of the given kind, active or not, sorted
// ascending by id, for deterministic leaves-first iteration by the sensor
// fabric and overload detector.
func (g *Graph) NodesByKind(kind NodeKind) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Node
	for _, n := range g.nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllNodesSorted returns every node sorted ascending by id.
func (g *Graph) AllNodesSorted() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
