package sim

import (
	"github.com/BrunoSantos751/EcoGrid/network"
	"github.com/BrunoSantos751/EcoGrid/structures"
)

const (
	criticalLoadRatio = 1.5
	highLoadRatio     = 1.2
	mediumLoadRatio   = 1.0
)

// detectOverloads implements spec.md SS4.10: clears stale OVERLOAD_WARNINGs
// for nodes no longer overloaded, then classifies and (re-)enqueues a
// warning for every active infrastructure node that is overloaded.
func (o *Orchestrator) detectOverloads() {
	for _, n := range o.infrastructureNodes() {
		if !n.IsOverloaded() {
			o.queue.RemoveEvent(n.ID, structures.OverloadWarning)
		}
	}

	for _, n := range o.infrastructureNodes() {
		if !n.Active || !n.IsOverloaded() {
			continue
		}
		ratio := n.CurrentLoad / n.MaxCapacity
		class := classifyOverload(ratio)

		if o.queue.HasEvent(n.ID, structures.OverloadWarning) {
			existing := findEvent(o.queue, n.ID, structures.OverloadWarning)
			if existing != nil && existing.Priority != class {
				o.queue.UpdatePriority(n.ID, structures.OverloadWarning, class)
			}
			continue
		}

		o.queue.Push(structures.Event{
			Priority:  class,
			Timestamp: o.now(),
			Type:      structures.OverloadWarning,
			NodeID:    n.ID,
		}, true)
	}
}

func (o *Orchestrator) infrastructureNodes() []*network.Node {
	var out []*network.Node
	out = append(out, o.graph.NodesByKind(network.Transformer)...)
	out = append(out, o.graph.NodesByKind(network.Substation)...)
	return out
}

func classifyOverload(ratio float64) structures.Priority {
	switch {
	case ratio >= criticalLoadRatio:
		return structures.Critical
	case ratio >= highLoadRatio:
		return structures.High
	default:
		return structures.Medium
	}
}

func findEvent(q *structures.PriorityQueue, nodeID int, t structures.EventType) *structures.Event {
	for _, ev := range q.GetEventsByNode(nodeID) {
		if ev.Type == t {
			e := ev
			return &e
		}
	}
	return nil
}

// protectCriticalConsumers implements spec.md SS4.11: for every transformer
// at or above 1.5x capacity, deactivate its single worst-contributing
// consumer (if it clears the abnormality gate) and enqueue a CRITICAL
// NODE_FAILURE for it.
func (o *Orchestrator) protectCriticalConsumers() {
	for _, t := range o.graph.NodesByKind(network.Transformer) {
		if !t.Active || t.CurrentLoad/t.MaxCapacity < criticalLoadRatio {
			continue
		}

		worst, worstScore, ok := o.worstConsumer(t)
		if !ok {
			continue
		}

		o.deactivateConsumer(worst)
		o.queue.Push(structures.Event{
			Priority:  structures.Critical,
			Timestamp: o.now(),
			Type:      structures.NodeFailure,
			NodeID:    worst.ID,
			Payload:   map[string]interface{}{"auto_deactivated": true, "abnormal_score": worstScore},
		}, true)
		o.logf("auto-deactivated consumer %d on critical transformer %d", worst.ID, t.ID)
	}
}

// worstConsumer finds t's worst-contributing consumer by abnormal_score,
// requiring either consumer_overload_ratio > 1.0 or impact_percentage > 20.
func (o *Orchestrator) worstConsumer(t *network.Node) (*network.Node, float64, bool) {
	var best *network.Node
	var bestScore float64

	for _, id := range o.graph.GetNeighbors(t.ID) {
		c, ok := o.graph.GetNode(id)
		if !ok || c.Kind != network.Consumer || !c.Active {
			continue
		}
		edge, ok := o.graph.GetEdge(t.ID, id)
		if !ok {
			continue
		}

		portion := edge.CurrentFlow
		if portion <= 0 {
			portion = c.CurrentLoad
		}

		amps := portion / edgeBaseVolts * 1000
		cableLoss := edge.LossAtAmps(amps)
		impactPct := (portion*1.05 + cableLoss) / t.MaxCapacity * 100

		var overloadRatio float64
		if c.MaxCapacity > 0 {
			overloadRatio = c.CurrentLoad / c.MaxCapacity
		}

		if overloadRatio <= 1.0 && impactPct <= 20 {
			continue
		}

		score := 0.6*overloadRatio + 0.4*impactPct/100
		if best == nil || score > bestScore {
			best, bestScore = c, score
		}
	}

	if best == nil {
		return nil, 0, false
	}
	return best, bestScore, true
}

// deactivateConsumer zeros a consumer's load, clears adjacent edge flows,
// and marks it inactive.
func (o *Orchestrator) deactivateConsumer(c *network.Node) {
	c.Active = false
	c.CurrentLoad = 0
	for _, e := range o.graph.NeighborEdges(c.ID) {
		e.CurrentFlow = 0
		if rev, ok := o.graph.GetEdge(e.TargetID, e.SourceID); ok {
			rev.CurrentFlow = 0
		}
	}
	o.queue.RemoveEvent(c.ID, structures.OverloadWarning)
}
