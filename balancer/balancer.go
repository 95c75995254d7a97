// Package balancer implements the neighbor-cascade load balancer (spec.md
// SS4.7): a depth-limited recursive push of excess load across physically
// adjacent nodes, respecting the three-level hierarchy rule.
package balancer

import (
	"errors"
	"sort"

	"github.com/BrunoSantos751/EcoGrid/network"
	"github.com/BrunoSantos751/EcoGrid/structures"
)

const (
	minExcess        = 0.1
	neighborResWeight = 0.05
)

// ErrUnknownNode indicates an operation referenced a node id the Balancer's
// graph has no entry for.
var ErrUnknownNode = errors.New("balancer: unknown node")

// Config holds the per-instance tunables a Balancer cascades with, sourced
// from simconfig.BalancerConfig.
type Config struct {
	// TargetLoadPct is the load fraction a node cascades down toward.
	TargetLoadPct float64
	// EmergencyCapPct is the absolute ceiling a neighbor may absorb up to.
	EmergencyCapPct float64
	// MaxCascadeDepth bounds cascade recursion.
	MaxCascadeDepth int
}

// Action records one unit of cascaded transfer, for logs and tests.
type Action struct {
	SourceID int
	TargetID int
	Amount   float64
	Depth    int
}

// Balancer owns the capacity index mirroring the graph's active nodes and
// runs cascades on demand.
type Balancer struct {
	g     *network.Graph
	index *structures.CapacityIndex
	cfg   Config
}

// New returns a Balancer over g, with its capacity index seeded from every
// node currently present and its cascade tuned by cfg.
func New(g *network.Graph, cfg Config) *Balancer {
	b := &Balancer{g: g, index: structures.NewCapacityIndex(), cfg: cfg}
	for _, n := range g.AllNodesSorted() {
		b.index.Insert(n)
	}
	return b
}

// Index exposes the underlying capacity index, mainly for tests.
func (b *Balancer) Index() *structures.CapacityIndex { return b.index }

// UpdateNodeLoad sets id's current load, refreshes the capacity index, and
// triggers a cascade if the new load exceeds the node's target threshold.
func (b *Balancer) UpdateNodeLoad(id int, newLoad float64) ([]Action, error) {
	n, ok := b.g.GetNode(id)
	if !ok {
		return nil, ErrUnknownNode
	}

	n.CurrentLoad = newLoad
	b.index.Update(n)

	if newLoad <= n.MaxCapacity*b.cfg.TargetLoadPct {
		return nil, nil
	}

	target := n.MaxCapacity * b.cfg.TargetLoadPct
	visited := map[int]bool{id: true}
	var actions []Action
	b.cascade(n, target, visited, b.cfg.MaxCascadeDepth, &actions)
	return actions, nil
}

// cascade pushes excess = current_load - target out to neighbors, most
// promising first, recursing into any neighbor that cannot absorb the full
// excess on its own.
func (b *Balancer) cascade(n *network.Node, target float64, visited map[int]bool, depth int, actions *[]Action) {
	excess := n.CurrentLoad - target
	if excess <= minExcess || depth <= 0 {
		return
	}

	type candidate struct {
		node *network.Node
		edge *network.Edge
		score float64
	}

	var candidates []candidate
	for _, e := range b.g.NeighborEdges(n.ID) {
		if visited[e.TargetID] {
			continue
		}
		neighbor, ok := b.g.GetNode(e.TargetID)
		if !ok || !neighbor.Active {
			continue
		}
		if !canTransferTo(b.g, n, neighbor) {
			continue
		}
		candidates = append(candidates, candidate{
			node:  neighbor,
			edge:  e,
			score: neighbor.LoadPercentage() + neighborResWeight*e.Resistance,
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score < candidates[j].score })

	for _, c := range candidates {
		if excess <= minExcess {
			return
		}

		visited[c.node.ID] = true
		room := c.node.MaxCapacity*b.cfg.EmergencyCapPct - c.node.CurrentLoad

		if room < excess {
			b.cascade(c.node, c.node.MaxCapacity*b.cfg.TargetLoadPct, visited, depth-1, actions)
			room = c.node.MaxCapacity*b.cfg.EmergencyCapPct - c.node.CurrentLoad
		}

		if room > 1.0 {
			amount := excess
			if room < amount {
				amount = room
			}
			c.node.CurrentLoad += amount
			n.CurrentLoad -= amount
			c.edge.CurrentFlow += amount
			if rev, ok := b.g.GetEdge(c.node.ID, n.ID); ok {
				rev.CurrentFlow += amount
			}
			excess -= amount

			b.index.Update(c.node)
			b.index.Update(n)

			*actions = append(*actions, Action{SourceID: n.ID, TargetID: c.node.ID, Amount: amount, Depth: depth})
		}
	}
}

// canTransferTo implements the hierarchy rule: CONSUMER->CONSUMER and
// TRANSFORMER->CONSUMER are forbidden outright. Same-kind transfers among
// TRANSFORMERs or among SUBSTATIONs require a direct physical edge (this is
// how same-level load-sharing happens at all: a direct line between two
// peers at the same level). Otherwise energy may move only from a lower
// hierarchy level to an equal-or-higher one, with physical connectivity
// required (guaranteed here, since callers only see adjacency edges).
func canTransferTo(g *network.Graph, from, to *network.Node) bool {
	if from.Kind == network.Consumer && to.Kind == network.Consumer {
		return false
	}
	if from.Kind == network.Transformer && to.Kind == network.Consumer {
		return false
	}
	if (from.Kind == network.Transformer && to.Kind == network.Transformer) ||
		(from.Kind == network.Substation && to.Kind == network.Substation) {
		_, ok := g.GetEdge(from.ID, to.ID)
		return ok
	}
	return to.Kind.Level() >= from.Kind.Level()
}
