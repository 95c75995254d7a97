package sim

import (
	"sort"

	"github.com/BrunoSantos751/EcoGrid/network"
)

const (
	transformerLossFraction = 0.05
	substationIdleBaseline  = 0.05
	edgeBaseVolts           = 220.0
)

// rollUp runs the four-step infrastructure roll-up (spec.md SS4.6), keeping
// hierarchical conservation up to advertised losses. It is idempotent.
func (o *Orchestrator) rollUp() {
	o.ensureAllConsumersHaveTransformer()
	o.validateProportionalDistributions()
	mapping := o.calculateConsumerTransformerMapping()
	o.applyTransformerLoads(mapping)
	o.applySubstationLoads()
}

// ensureAllConsumersHaveTransformer rebinds any active consumer whose
// parent is missing, inactive, or unconnected to the best connected active
// transformer (maximizing eta_transformer * eta_edge).
func (o *Orchestrator) ensureAllConsumersHaveTransformer() {
	for _, c := range o.graph.NodesByKind(network.Consumer) {
		if !c.Active {
			continue
		}

		parentID, hasParent := o.graph.GetParent(c.ID)
		needsRebind := !hasParent
		if hasParent {
			parent, ok := o.graph.GetNode(parentID)
			if !ok || !parent.Active {
				needsRebind = true
			} else if _, connected := o.graph.GetEdge(parentID, c.ID); !connected {
				needsRebind = true
			}
		}
		if !needsRebind {
			continue
		}

		var best *network.Node
		var bestScore float64
		for _, id := range o.graph.GetNeighbors(c.ID) {
			t, ok := o.graph.GetNode(id)
			if !ok || t.Kind != network.Transformer || !t.Active {
				continue
			}
			edge, ok := o.graph.GetEdge(t.ID, c.ID)
			if !ok {
				continue
			}
			score := t.Efficiency * edge.Efficiency
			if best == nil || score > bestScore {
				best, bestScore = t, score
			}
		}
		if best != nil {
			o.graph.SetParent(c.ID, best.ID)
		}
	}
}

// validateProportionalDistributions clamps each incoming transformer flow to
// the consumer's load and rescales or tops up the total to match it.
func (o *Orchestrator) validateProportionalDistributions() {
	for _, c := range o.graph.NodesByKind(network.Consumer) {
		if !c.Active {
			continue
		}
		L := c.CurrentLoad

		var incoming []*network.Edge
		var total float64
		for _, id := range o.graph.GetNeighbors(c.ID) {
			t, ok := o.graph.GetNode(id)
			if !ok || t.Kind != network.Transformer {
				continue
			}
			e, ok := o.graph.GetEdge(id, c.ID)
			if !ok {
				continue
			}
			if e.CurrentFlow > L {
				e.CurrentFlow = L
			}
			if e.CurrentFlow > 0 {
				incoming = append(incoming, e)
				total += e.CurrentFlow
			}
		}

		if total == 0 {
			_, hasParent := o.graph.GetParent(c.ID)
			if !hasParent {
				if t := firstConnectedTransformer(o.graph, c.ID); t != nil {
					o.graph.SetParent(c.ID, t.ID)
				}
			}
			continue
		}

		tolerance := 0.01 * L
		if tolerance < 0.1 {
			tolerance = 0.1
		}

		if total > L+tolerance {
			scale := L / total
			for _, e := range incoming {
				e.CurrentFlow *= scale
			}
		} else if total < L {
			parentID, hasParent := o.graph.GetParent(c.ID)
			if hasParent {
				remainder := L - total
				if e, ok := o.graph.GetEdge(parentID, c.ID); ok {
					e.CurrentFlow += remainder
				}
			}
		}
	}
}

func firstConnectedTransformer(g *network.Graph, consumerID int) *network.Node {
	for _, id := range g.GetNeighbors(consumerID) {
		if t, ok := g.GetNode(id); ok && t.Kind == network.Transformer {
			return t
		}
	}
	return nil
}

// consumerPortion is one transformer's allocated share of a consumer's load.
type consumerPortion struct {
	transformerID int
	amount        float64
}

// calculateConsumerTransformerMapping builds {consumer_id -> portions},
// topping up and/or rescaling so the total matches the consumer's load.
func (o *Orchestrator) calculateConsumerTransformerMapping() map[int][]consumerPortion {
	mapping := make(map[int][]consumerPortion)

	for _, c := range o.graph.NodesByKind(network.Consumer) {
		if !c.Active {
			continue
		}
		L := c.CurrentLoad

		var portions []consumerPortion
		var total float64
		for _, id := range o.graph.GetNeighbors(c.ID) {
			t, ok := o.graph.GetNode(id)
			if !ok || t.Kind != network.Transformer {
				continue
			}
			e, ok := o.graph.GetEdge(id, c.ID)
			if !ok || e.CurrentFlow <= 0 {
				continue
			}
			amount := e.CurrentFlow
			if amount > L {
				amount = L
			}
			portions = append(portions, consumerPortion{transformerID: id, amount: amount})
			total += amount
		}

		parentID, hasParent := o.graph.GetParent(c.ID)

		if total < 0.99*L && hasParent {
			if parent, ok := o.graph.GetNode(parentID); ok && parent.Active {
				topUp := L - total
				found := false
				for i := range portions {
					if portions[i].transformerID == parentID {
						portions[i].amount += topUp
						found = true
						break
					}
				}
				if !found {
					portions = append(portions, consumerPortion{transformerID: parentID, amount: topUp})
				}
				total += topUp
			}
		}

		if total == 0 && hasParent {
			portions = append(portions, consumerPortion{transformerID: parentID, amount: L})
			total = L
		} else if total > 0 && absDiff(total, L) > 0.1 {
			scale := L / total
			for i := range portions {
				portions[i].amount *= scale
			}
		}

		mapping[c.ID] = portions
	}

	return mapping
}

func absDiff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}

// applyTransformerLoads recomputes every active transformer's load from its
// allocated consumer portions plus cable and transformer-internal losses.
func (o *Orchestrator) applyTransformerLoads(mapping map[int][]consumerPortion) {
	served := make(map[int]float64)
	cableLoss := make(map[int]float64)

	for consumerID, portions := range mapping {
		for _, p := range portions {
			served[p.transformerID] += p.amount
			if e, ok := o.graph.GetEdge(p.transformerID, consumerID); ok {
				amps := p.amount / edgeBaseVolts * 1000
				cableLoss[p.transformerID] += e.LossAtAmps(amps)
			}
		}
	}

	for _, t := range o.graph.NodesByKind(network.Transformer) {
		if !t.Active {
			continue
		}
		totalChildren := served[t.ID]
		losses := transformerLossFraction * totalChildren
		t.CurrentLoad = totalChildren + losses + cableLoss[t.ID]
	}
}

// applySubstationLoads recomputes every active substation's load as the sum
// of its distinct active transformer children's loads, or an idle baseline.
func (o *Orchestrator) applySubstationLoads() {
	for _, s := range o.graph.NodesByKind(network.Substation) {
		if !s.Active {
			continue
		}

		var total float64
		var any bool
		seen := make(map[int]bool)
		for _, id := range s.ChildrenIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			t, ok := o.graph.GetNode(id)
			if !ok || t.Kind != network.Transformer || !t.Active {
				continue
			}
			if t.CurrentLoad > 0 {
				any = true
			}
			total += t.CurrentLoad
		}

		if any {
			s.CurrentLoad = total
		} else {
			s.CurrentLoad = s.MaxCapacity * substationIdleBaseline
		}
	}
}

// sortedByLoadDesc returns a copy of nodes ordered by descending current
// load. Nothing in the package calls it at present.
func sortedByLoadDesc(nodes []*network.Node) []*network.Node {
	out := make([]*network.Node, len(nodes))
	copy(out, nodes)
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentLoad > out[j].CurrentLoad })
	return out
}
