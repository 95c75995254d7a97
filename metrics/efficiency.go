// Package metrics computes the global efficiency figure (spec.md SS4.13) used
// by the Redistributor to score candidate consumer reassignments, and the
// derived figures surfaced by the orchestrator's get_metrics observable.
package metrics

import "github.com/BrunoSantos751/EcoGrid/network"

// Ceiling is the saturation cap on GlobalEfficiency.
const Ceiling = 1000.0

// Snapshot summarizes one tick's global efficiency figure and its inputs.
type Snapshot struct {
	GlobalEfficiency float64
	Numerator        float64
	Denominator      float64
	TransmissionLoss float64
	ActiveRatio      float64
}

// Compute derives a Snapshot from the current graph state per the global
// efficiency formula: E = numerator / denominator, saturated at Ceiling.
// Numerator sums current_load*efficiency over active nodes. Denominator sums
// per-node losses (load*(1-eta)/eta for eta in (0,1)) plus per-hierarchical-
// edge losses (load_passing*(1-eta_edge)/eta_edge, counted once per
// unordered pair, only for edges carrying a hierarchical flow above 1 kW).
func Compute(g *network.Graph) Snapshot {
	nodes := g.AllNodesSorted()

	var numerator, denominator float64
	var activeCount int

	for _, n := range nodes {
		if !n.Active {
			continue
		}
		activeCount++
		numerator += n.CurrentLoad * n.Efficiency
		if n.Efficiency > 0 && n.Efficiency < 1 {
			denominator += n.CurrentLoad * (1 - n.Efficiency) / n.Efficiency
		}
	}

	edgeLoss := HierarchicalEdgeLoss(g)
	denominator += edgeLoss

	var activeRatio float64
	if len(nodes) > 0 {
		activeRatio = float64(activeCount) / float64(len(nodes))
	}

	var e float64
	switch {
	case denominator == 0 && numerator == 0:
		e = 0
	case denominator == 0:
		e = Ceiling
	default:
		e = numerator / denominator
		if e > Ceiling {
			e = Ceiling
		}
	}

	return Snapshot{
		GlobalEfficiency: e,
		Numerator:        numerator,
		Denominator:      denominator,
		TransmissionLoss: edgeLoss,
		ActiveRatio:      activeRatio,
	}
}

// isHierarchical reports whether the unordered pair (a,b) carries a
// hierarchical flow: either direction's current_flow exceeds 0.1, or the
// pair is a parent/child link.
func isHierarchical(g *network.Graph, a, b *network.Node) (bool, float64) {
	fwd, fwdOK := g.GetEdge(a.ID, b.ID)
	rev, revOK := g.GetEdge(b.ID, a.ID)

	var loadPassing float64
	flowing := false
	if fwdOK && fwd.CurrentFlow > 0.1 {
		flowing = true
		loadPassing = fwd.CurrentFlow
	}
	if revOK && rev.CurrentFlow > 0.1 {
		flowing = true
		if rev.CurrentFlow > loadPassing {
			loadPassing = rev.CurrentFlow
		}
	}

	parentLink := a.ParentID == b.ID || b.ParentID == a.ID
	if !flowing && !parentLink {
		return false, 0
	}
	if loadPassing == 0 {
		if fwdOK {
			loadPassing = fwd.CurrentFlow
		} else if revOK {
			loadPassing = rev.CurrentFlow
		}
	}
	return true, loadPassing
}

// hierarchicalEfficiency picks the edge efficiency to charge a hierarchical
// pair against, preferring whichever directed record exists.
func hierarchicalEfficiency(g *network.Graph, a, b *network.Node) float64 {
	if e, ok := g.GetEdge(a.ID, b.ID); ok {
		return e.Efficiency
	}
	if e, ok := g.GetEdge(b.ID, a.ID); ok {
		return e.Efficiency
	}
	return 1
}

// HierarchicalEdgeLoss sums edge losses over hierarchical links, counted once
// per unordered pair, for pairs whose load_passing exceeds 1.0 kW.
func HierarchicalEdgeLoss(g *network.Graph) float64 {
	var total float64
	for _, a := range g.AllNodesSorted() {
		for _, n := range g.GetNeighbors(a.ID) {
			if n <= a.ID {
				continue
			}
			b, ok := g.GetNode(n)
			if !ok {
				continue
			}
			hier, loadPassing := isHierarchical(g, a, b)
			if !hier || loadPassing <= 1.0 {
				continue
			}
			eta := hierarchicalEfficiency(g, a, b)
			if eta > 0 && eta < 1 {
				total += loadPassing * (1 - eta) / eta
			}
		}
	}
	return total
}

// TransmissionLoss sums resistive LossAtAmps across every physical line,
// counted once per unordered pair (distinct from the efficiency-formula
// denominator above). Nothing in the repository calls it at present.
func TransmissionLoss(g *network.Graph) float64 {
	var total float64
	for _, n := range g.AllNodesSorted() {
		for _, e := range g.NeighborEdges(n.ID) {
			if e.SourceID >= e.TargetID {
				continue
			}
			total += e.LossAtAmps(e.CurrentFlow)
		}
	}
	return total
}
