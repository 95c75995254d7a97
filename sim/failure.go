package sim

import (
	"github.com/BrunoSantos751/EcoGrid/metrics"
	"github.com/BrunoSantos751/EcoGrid/network"
	"github.com/BrunoSantos751/EcoGrid/structures"
)

const manualLoadAvailabilityGuard = 0.10

// InjectFailure implements spec.md SS4.12's inject_failure(id). It is
// idempotent: failing an already-inactive node is a no-op.
func (o *Orchestrator) InjectFailure(id int) {
	n, ok := o.graph.GetNode(id)
	if !ok {
		o.logf("inject_failure: unknown node %d", id)
		return
	}
	if !n.Active {
		return
	}

	switch n.Kind {
	case network.Consumer:
		o.failConsumer(n)
	case network.Transformer:
		o.failTransformer(n)
	case network.Substation:
		o.failSubstation(n)
	}
}

func (o *Orchestrator) failConsumer(c *network.Node) {
	c.Active = false
	c.CurrentLoad = 0
	o.clearAdjacentFlows(c.ID)
	o.queue.RemoveEvent(c.ID, structures.OverloadWarning)
	o.enqueueFailure(c.ID, false)
}

func (o *Orchestrator) failTransformer(t *network.Node) {
	t.Active = false
	t.CurrentLoad = 0

	consumers := o.transformerConsumers(t.ID)
	for _, c := range consumers {
		alternates := o.alternateTransformersFor(c, t.ID)
		switch {
		case len(alternates) == 1:
			o.migrateConsumer(c, alternates[0], c.CurrentLoad)
		case len(alternates) > 1:
			o.distributeConsumerAcross(c, alternates)
		default:
			o.failConsumer(c)
		}
	}

	o.clearAdjacentFlows(t.ID)
	o.enqueueFailure(t.ID, false)
	o.rollUp()
}

func (o *Orchestrator) failSubstation(s *network.Node) {
	s.Active = false
	s.CurrentLoad = 0

	var alternates []*network.Node
	for _, other := range o.graph.NodesByKind(network.Substation) {
		if other.ID != s.ID && other.Active {
			alternates = append(alternates, other)
		}
	}

	for _, id := range s.ChildrenIDs {
		t, ok := o.graph.GetNode(id)
		if !ok || t.Kind != network.Transformer {
			continue
		}

		var rebound bool
		for _, alt := range alternates {
			if _, connected := o.graph.GetEdge(alt.ID, t.ID); connected {
				o.graph.SetParent(t.ID, alt.ID)
				if fwd, ok := o.graph.GetEdge(s.ID, t.ID); ok {
					if altEdge, ok := o.graph.GetEdge(alt.ID, t.ID); ok {
						altEdge.CurrentFlow = fwd.CurrentFlow
					}
					fwd.CurrentFlow = 0
				}
				rebound = true
				break
			}
		}
		if !rebound {
			if len(alternates) == 0 {
				o.blackout(t)
			} else {
				o.cascadeDeactivateTransformer(t)
			}
		}
	}

	o.clearAdjacentFlows(s.ID)
	o.enqueueFailure(s.ID, false)
	o.rollUp()
}

func (o *Orchestrator) blackout(t *network.Node) {
	o.cascadeDeactivateTransformer(t)
}

func (o *Orchestrator) cascadeDeactivateTransformer(t *network.Node) {
	if !t.Active {
		return
	}
	o.failTransformer(t)
}

// transformerConsumers returns every consumer t was serving: hierarchical
// children plus any consumer reached by a positive T->C flow.
func (o *Orchestrator) transformerConsumers(transformerID int) []*network.Node {
	seen := make(map[int]bool)
	var out []*network.Node
	for _, id := range o.graph.GetNeighbors(transformerID) {
		c, ok := o.graph.GetNode(id)
		if !ok || c.Kind != network.Consumer || seen[id] {
			continue
		}
		e, hasEdge := o.graph.GetEdge(transformerID, id)
		parentID, hasParent := o.graph.GetParent(id)
		isChild := hasParent && parentID == transformerID
		hasFlow := hasEdge && e.CurrentFlow > 0
		if isChild || hasFlow {
			seen[id] = true
			out = append(out, c)
		}
	}
	return out
}

// alternateTransformersFor returns active transformers, other than exclude,
// connected to c with available_capacity greater than 10% of c's load.
func (o *Orchestrator) alternateTransformersFor(c *network.Node, exclude int) []*network.Node {
	var out []*network.Node
	for _, id := range o.graph.GetNeighbors(c.ID) {
		if id == exclude {
			continue
		}
		t, ok := o.graph.GetNode(id)
		if !ok || t.Kind != network.Transformer || !t.Active {
			continue
		}
		if t.AvailableCapacity() > 0.10*c.CurrentLoad {
			out = append(out, t)
		}
	}
	return out
}

func (o *Orchestrator) migrateConsumer(c, alt *network.Node, amount float64) {
	o.graph.SetParent(c.ID, alt.ID)
	if e, ok := o.graph.GetEdge(alt.ID, c.ID); ok {
		e.CurrentFlow = amount
	}
}

// distributeConsumerAcross spreads c's load proportionally by available
// capacity across alternates, capping each transfer to the alternate's
// headroom, and rebinds c's hierarchical parent to the largest recipient.
func (o *Orchestrator) distributeConsumerAcross(c *network.Node, alternates []*network.Node) {
	var totalCap float64
	for _, alt := range alternates {
		totalCap += alt.AvailableCapacity()
	}
	if totalCap <= 0 {
		o.failConsumer(c)
		return
	}

	var bestAlt *network.Node
	var bestAmount float64
	for _, alt := range alternates {
		share := c.CurrentLoad * (alt.AvailableCapacity() / totalCap)
		if share > alt.AvailableCapacity() {
			share = alt.AvailableCapacity()
		}
		if e, ok := o.graph.GetEdge(alt.ID, c.ID); ok {
			e.CurrentFlow = share
		}
		if share > bestAmount {
			bestAlt, bestAmount = alt, share
		}
	}
	if bestAlt != nil {
		o.graph.SetParent(c.ID, bestAlt.ID)
	}
}

func (o *Orchestrator) clearAdjacentFlows(id int) {
	for _, e := range o.graph.NeighborEdges(id) {
		e.CurrentFlow = 0
		if rev, ok := o.graph.GetEdge(e.TargetID, e.SourceID); ok {
			rev.CurrentFlow = 0
		}
	}
}

func (o *Orchestrator) enqueueFailure(id int, autoDeactivated bool) {
	var payload map[string]interface{}
	if autoDeactivated {
		payload = map[string]interface{}{"auto_deactivated": true}
	}
	o.queue.Push(structures.Event{
		Priority:  structures.Critical,
		Timestamp: o.now(),
		Type:      structures.NodeFailure,
		NodeID:    id,
		Payload:   payload,
	}, true)
}

// ReactivateNode implements spec.md SS4.12's reactivate_node(id). It is a
// no-op if the node is already active.
func (o *Orchestrator) ReactivateNode(id int) {
	n, ok := o.graph.GetNode(id)
	if !ok {
		o.logf("reactivate_node: unknown node %d", id)
		return
	}
	if n.Active {
		return
	}

	switch n.Kind {
	case network.Consumer:
		n.Active = true
	case network.Transformer:
		o.reactivateTransformer(n)
	case network.Substation:
		o.reactivateSubstation(n)
	}

	o.queue.RemoveEvent(id, structures.NodeFailure)
	o.queue.Push(structures.Event{
		Priority:  structures.Medium,
		Timestamp: o.now(),
		Type:      structures.Maintenance,
		NodeID:    id,
	}, true)
}

func (o *Orchestrator) reactivateTransformer(t *network.Node) {
	t.Active = true
	t.LastReactivationTick = o.tick
	o.redis.MarkReactivated(t.ID, o.tick)
	o.clearAdjacentFlows(t.ID)

	var connectedConsumers []*network.Node
	for _, id := range o.graph.GetNeighbors(t.ID) {
		if c, ok := o.graph.GetNode(id); ok && c.Kind == network.Consumer {
			connectedConsumers = append(connectedConsumers, c)
		}
	}

	for _, c := range connectedConsumers {
		o.optimizeConsumerParent(c)
	}

	var total float64
	for _, c := range connectedConsumers {
		if parentID, ok := o.graph.GetParent(c.ID); ok && parentID == t.ID {
			total += c.CurrentLoad
		}
	}
	t.CurrentLoad = 1.05 * total

	for _, c := range connectedConsumers {
		o.optimizeConsumerParent(c)
	}
}

func (o *Orchestrator) reactivateSubstation(s *network.Node) {
	s.Active = true
	for _, id := range s.ChildrenIDs {
		t, ok := o.graph.GetNode(id)
		if !ok || t.Kind != network.Transformer || t.Active {
			continue
		}
		if o.hasActiveAlternateSubstation(t, s.ID) {
			continue
		}
		o.graph.SetParent(t.ID, s.ID)
		o.clearAdjacentFlows(t.ID)
		o.reactivateTransformer(t)
	}
}

func (o *Orchestrator) hasActiveAlternateSubstation(t *network.Node, exclude int) bool {
	for _, id := range o.graph.GetNeighbors(t.ID) {
		if id == exclude {
			continue
		}
		n, ok := o.graph.GetNode(id)
		if ok && n.Kind == network.Substation && n.Active {
			return true
		}
	}
	return false
}

// optimizeConsumerParent re-simulates every transformer c is connected to,
// picks the one maximizing 0.7*simulated_global_efficiency_norm +
// 0.3*eta_transformer*eta_edge, rebinds c's parent to it, and clears flows
// on the others.
func (o *Orchestrator) optimizeConsumerParent(c *network.Node) {
	var candidates []*network.Node
	for _, id := range o.graph.GetNeighbors(c.ID) {
		if t, ok := o.graph.GetNode(id); ok && t.Kind == network.Transformer && t.Active {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return
	}

	var best *network.Node
	var bestScore float64
	for _, t := range candidates {
		edge, ok := o.graph.GetEdge(t.ID, c.ID)
		if !ok {
			continue
		}
		effNorm := o.simulatedEfficiencyNorm(c, t)
		score := 0.7*effNorm + 0.3*t.Efficiency*edge.Efficiency
		if best == nil || score > bestScore {
			best, bestScore = t, score
		}
	}
	if best == nil {
		return
	}

	o.graph.SetParent(c.ID, best.ID)
	for _, t := range candidates {
		if t.ID == best.ID {
			continue
		}
		if e, ok := o.graph.GetEdge(t.ID, c.ID); ok {
			e.CurrentFlow = 0
		}
	}
	if e, ok := o.graph.GetEdge(best.ID, c.ID); ok {
		e.CurrentFlow = c.CurrentLoad
	}
}

func (o *Orchestrator) simulatedEfficiencyNorm(c, t *network.Node) float64 {
	old := c.CurrentLoad
	oldParent, hasParent := o.graph.GetParent(c.ID)
	_ = hasParent

	o.graph.SetParent(c.ID, t.ID)
	snap := metrics.Compute(o.graph)
	if hasParent {
		o.graph.SetParent(c.ID, oldParent)
	}
	c.CurrentLoad = old

	norm := snap.GlobalEfficiency / metrics.Ceiling
	if norm > 1 {
		norm = 1
	}
	if norm < 0 {
		norm = 0
	}
	return norm
}

// InjectManualLoad implements spec.md SS4.12's inject_manual_load(id, kW).
func (o *Orchestrator) InjectManualLoad(id int, load float64) {
	n, ok := o.graph.GetNode(id)
	if !ok {
		o.logf("inject_manual_load: unknown node %d", id)
		return
	}

	oldLoad := n.CurrentLoad
	n.CurrentLoad = load
	if n.Kind == network.Consumer {
		n.ManualLoad = true
	}

	if n.Kind == network.Consumer && oldLoad > 0 {
		hasFlow := false
		for _, id := range o.graph.GetNeighbors(n.ID) {
			if e, ok := o.graph.GetEdge(id, n.ID); ok && e.CurrentFlow > 0 {
				hasFlow = true
				break
			}
		}
		if hasFlow {
			o.recalculateProportionalDistribution(n, oldLoad)
			o.rollUp()
		}
	}

	ratio := load / n.MaxCapacity
	var class structures.Priority
	switch {
	case ratio >= criticalLoadRatio:
		class = structures.Critical
	case ratio >= highLoadRatio:
		class = structures.High
	case ratio >= mediumLoadRatio:
		class = structures.Medium
	default:
		class = structures.Low
	}
	o.queue.Push(structures.Event{
		Priority:  class,
		Timestamp: o.now(),
		Type:      structures.OverloadWarning,
		NodeID:    id,
	}, true)
}

// NormalizeNode implements spec.md SS4.12's normalize_node(id).
func (o *Orchestrator) NormalizeNode(id int) {
	n, ok := o.graph.GetNode(id)
	if !ok {
		o.logf("normalize_node: unknown node %d", id)
		return
	}

	if n.IsOverloaded() {
		n.CurrentLoad = 0.60 * n.MaxCapacity
	}
	n.ManualLoad = false
	o.queue.RemoveEvent(id, structures.OverloadWarning)
	o.clearAdjacentFlows(id)

	o.queue.Push(structures.Event{
		Priority:  structures.Medium,
		Timestamp: o.now(),
		Type:      structures.Maintenance,
		NodeID:    id,
	}, true)

	o.rollUp()
}
