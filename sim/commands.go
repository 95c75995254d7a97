package sim

import (
	"fmt"

	"github.com/BrunoSantos751/EcoGrid/balancer"
	"github.com/BrunoSantos751/EcoGrid/network"
	"github.com/BrunoSantos751/EcoGrid/persistence"
	"github.com/BrunoSantos751/EcoGrid/redistribute"
	"github.com/BrunoSantos751/EcoGrid/structures"
)

// AddNode registers a new node with the graph and indexes it, linking it to
// parentID (network.NoParent for a root SUBSTATION).
func (o *Orchestrator) AddNode(id int, kind network.NodeKind, maxCapacity, x, y, efficiency float64, parentID int) error {
	n := &network.Node{
		ID: id, Kind: kind, MaxCapacity: maxCapacity, X: x, Y: y,
		Efficiency: efficiency, ParentID: parentID, NominalVolts: 220,
		Active: true,
	}
	if err := o.graph.AddNode(n); err != nil {
		return fmt.Errorf("sim: add_node: %w", err)
	}
	o.ids.Insert(n)
	o.bal.Index().Insert(n)
	return nil
}

// OptimizeInitialTransformerAssignment greedily rebinds every active
// consumer to the connected transformer maximizing the weighted
// simulated-global-efficiency score. Safe to call multiple times.
func (o *Orchestrator) OptimizeInitialTransformerAssignment() {
	for _, c := range o.graph.NodesByKind(network.Consumer) {
		if c.Active {
			o.optimizeConsumerParent(c)
		}
	}
	o.rollUp()
}

// SaveStateManual captures an opaque snapshot of the current topology.
func (o *Orchestrator) SaveStateManual() persistence.Snapshot {
	return persistence.Capture(o.graph)
}

// LoadStateManual restores the orchestrator's graph, indexes and balancer
// from an opaque snapshot previously produced by SaveStateManual.
func (o *Orchestrator) LoadStateManual(snap persistence.Snapshot) error {
	g, err := persistence.Restore(snap)
	if err != nil {
		return fmt.Errorf("sim: load_state_manual: %w", err)
	}

	ids := structures.NewKeyedIndex()
	for _, n := range g.AllNodesSorted() {
		ids.Insert(n)
	}

	o.graph = g
	o.ids = ids
	o.bal = balancer.New(g, o.cfg.Balancer.ToBalancerConfig())
	o.redis = redistribute.New(g, o.cfg.Redistributor.ToRedistributorConfig())
	return nil
}
