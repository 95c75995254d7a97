// Package persistence saves and restores an opaque snapshot of the network
// graph as YAML, for the orchestrator's save_state_manual/load_state_manual
// commands. Persistence is external and synchronous, never invoked from the
// per-tick pipeline.
package persistence

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BrunoSantos751/EcoGrid/network"
)

// Snapshot is the YAML-serializable form of a Graph: every node verbatim,
// plus the distinct physical edges (one record per unordered pair; AddEdge
// recreates both directed slots on load).
type Snapshot struct {
	Nodes []NodeRecord `yaml:"nodes"`
	Edges []EdgeRecord `yaml:"edges"`
}

// NodeRecord is the on-disk shape of a network.Node.
type NodeRecord struct {
	ID                   int     `yaml:"id"`
	Kind                 int     `yaml:"kind"`
	MaxCapacity          float64 `yaml:"max_capacity"`
	CurrentLoad          float64 `yaml:"current_load"`
	Active               bool    `yaml:"active"`
	X                    float64 `yaml:"x"`
	Y                    float64 `yaml:"y"`
	Efficiency           float64 `yaml:"efficiency"`
	ParentID             int     `yaml:"parent_id"`
	NominalVolts         float64 `yaml:"nominal_volts"`
	ManualLoad           bool    `yaml:"manual_load"`
	LastReactivationTick uint64  `yaml:"last_reactivation_tick"`
}

// EdgeRecord is the on-disk shape of one physical line.
type EdgeRecord struct {
	SourceID    int     `yaml:"source_id"`
	TargetID    int     `yaml:"target_id"`
	Distance    float64 `yaml:"distance"`
	Resistance  float64 `yaml:"resistance"`
	Efficiency  float64 `yaml:"efficiency"`
	FlowForward float64 `yaml:"flow_forward"`
	FlowReverse float64 `yaml:"flow_reverse"`
}

// Capture builds a Snapshot of g's current state.
func Capture(g *network.Graph) Snapshot {
	var snap Snapshot
	seen := make(map[[2]int]bool)

	for _, n := range g.AllNodesSorted() {
		snap.Nodes = append(snap.Nodes, NodeRecord{
			ID: n.ID, Kind: int(n.Kind), MaxCapacity: n.MaxCapacity,
			CurrentLoad: n.CurrentLoad, Active: n.Active, X: n.X, Y: n.Y,
			Efficiency: n.Efficiency, ParentID: n.ParentID,
			NominalVolts: n.NominalVolts, ManualLoad: n.ManualLoad,
			LastReactivationTick: n.LastReactivationTick,
		})

		for _, e := range g.NeighborEdges(n.ID) {
			key := [2]int{e.SourceID, e.TargetID}
			revKey := [2]int{e.TargetID, e.SourceID}
			if seen[key] || seen[revKey] {
				continue
			}
			seen[key] = true

			rev, _ := g.GetEdge(e.TargetID, e.SourceID)
			record := EdgeRecord{
				SourceID: e.SourceID, TargetID: e.TargetID,
				Distance: e.Distance, Resistance: e.Resistance, Efficiency: e.Efficiency,
				FlowForward: e.CurrentFlow,
			}
			if rev != nil {
				record.FlowReverse = rev.CurrentFlow
			}
			snap.Edges = append(snap.Edges, record)
		}
	}

	return snap
}

// Restore rebuilds a Graph from snap.
func Restore(snap Snapshot) (*network.Graph, error) {
	g := network.NewGraph()

	for _, nr := range snap.Nodes {
		n := &network.Node{
			ID: nr.ID, Kind: network.NodeKind(nr.Kind), MaxCapacity: nr.MaxCapacity,
			CurrentLoad: nr.CurrentLoad, Active: nr.Active, X: nr.X, Y: nr.Y,
			Efficiency: nr.Efficiency, ParentID: nr.ParentID,
			NominalVolts: nr.NominalVolts, ManualLoad: nr.ManualLoad,
			LastReactivationTick: nr.LastReactivationTick,
		}
		if err := g.AddNode(n); err != nil {
			return nil, fmt.Errorf("persistence: restore node %d: %w", nr.ID, err)
		}
	}

	for _, er := range snap.Edges {
		if err := g.AddEdge(er.SourceID, er.TargetID, er.Distance, er.Resistance, er.Efficiency); err != nil {
			return nil, fmt.Errorf("persistence: restore edge %d-%d: %w", er.SourceID, er.TargetID, err)
		}
		if fwd, ok := g.GetEdge(er.SourceID, er.TargetID); ok {
			fwd.CurrentFlow = er.FlowForward
		}
		if rev, ok := g.GetEdge(er.TargetID, er.SourceID); ok {
			rev.CurrentFlow = er.FlowReverse
		}
	}

	return g, nil
}

// Save writes g's snapshot to path as YAML.
func Save(g *network.Graph, path string) error {
	snap := Capture(g)
	raw, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("persistence: marshal: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("persistence: write %s: %w", path, err)
	}
	return nil
}

// LoadFile reads path and restores its Graph.
func LoadFile(path string) (*network.Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persistence: read %s: %w", path, err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("persistence: parse %s: %w", path, err)
	}
	return Restore(snap)
}
