// Package redistribute implements the hierarchy-aware consumer redistributor
// (spec.md SS4.8): reassigning consumers across alternative transformers to
// relieve overload while maximizing the global efficiency metric, with
// hysteresis against thrashing and predictive cleanup of stale transfers.
package redistribute

import (
	"sort"

	"github.com/BrunoSantos751/EcoGrid/metrics"
	"github.com/BrunoSantos751/EcoGrid/network"
)

const (
	reactivationGraceTicks    = 9
	reactivationCapacityGuard = 0.05
	maxTransformersPerCycle   = 3
)

// Config holds the per-instance tunables a Redistributor cycles with,
// sourced from simconfig.RedistributorConfig.
type Config struct {
	// Threshold is the load_pct above which a transformer is considered
	// overloaded for redistribution purposes.
	Threshold float64
	// Target is the load_pct a redistribution aims to bring the source
	// transformer down to.
	Target float64
	// MinAmount is the smallest transfer worth applying, in kW.
	MinAmount float64
	// MinLoadDifference is the hysteresis margin a candidate must clear
	// below the source's load_pct.
	MinLoadDifference float64
	// MaxPerCyclePct caps how much of a transformer's capacity may move in
	// one redistribution cycle.
	MaxPerCyclePct float64
}

// Action records one applied transfer, for logs and tests.
type Action struct {
	ConsumerID    int
	FromID, ToID  int
	Amount        float64
}

// Redistributor owns the recently-reactivated tracking set.
type Redistributor struct {
	g                  *network.Graph
	cfg                Config
	recentlyReactivated map[int]uint64 // transformerID -> last_reactivation_tick
}

// New returns a Redistributor over g, tuned by cfg.
func New(g *network.Graph, cfg Config) *Redistributor {
	return &Redistributor{g: g, cfg: cfg, recentlyReactivated: make(map[int]uint64)}
}

// MarkReactivated records that transformerID was just reactivated at tick,
// temporarily excluding it from redistribution candidacy.
func (r *Redistributor) MarkReactivated(transformerID int, tick uint64) {
	r.recentlyReactivated[transformerID] = tick
}

// expireReactivated drops entries whose transformer is inactive, aged >= 9
// ticks past its last_reactivation_tick, or now carries > 5% of capacity.
func (r *Redistributor) expireReactivated(currentTick uint64) {
	for id, markedTick := range r.recentlyReactivated {
		n, ok := r.g.GetNode(id)
		if !ok || !n.Active {
			delete(r.recentlyReactivated, id)
			continue
		}
		if currentTick-markedTick >= reactivationGraceTicks {
			delete(r.recentlyReactivated, id)
			continue
		}
		if n.LoadPercentage() > reactivationCapacityGuard {
			delete(r.recentlyReactivated, id)
		}
	}
}

// CheckAndRedistribute drives one redistribution cycle and returns every
// applied transfer.
func (r *Redistributor) CheckAndRedistribute(currentTick uint64) []Action {
	r.expireReactivated(currentTick)

	var overloaded []*network.Node
	for _, n := range r.g.NodesByKind(network.Transformer) {
		if n.Active && n.LoadPercentage() > r.cfg.Threshold {
			overloaded = append(overloaded, n)
		}
	}
	sort.Slice(overloaded, func(i, j int) bool {
		return overloaded[i].LoadPercentage() > overloaded[j].LoadPercentage()
	})

	limit := maxTransformersPerCycle
	if len(overloaded) < limit {
		limit = len(overloaded)
	}

	var actions []Action
	for _, t := range overloaded[:limit] {
		actions = append(actions, r.redistributeFrom(t)...)
	}
	return actions
}

type candidateScore struct {
	node  *network.Node
	score float64
}

func (r *Redistributor) redistributeFrom(t *network.Node) []Action {
	excess := t.CurrentLoad - r.cfg.Target*t.MaxCapacity
	if excess < r.cfg.MinAmount {
		return nil
	}

	perCycleCap := t.MaxCapacity * r.cfg.MaxPerCyclePct
	if excess < perCycleCap {
		perCycleCap = excess
	}
	remaining := perCycleCap

	consumers := r.connectedConsumers(t)
	sort.Slice(consumers, func(i, j int) bool { return consumers[i].CurrentLoad > consumers[j].CurrentLoad })

	var actions []Action
	for _, consumer := range consumers {
		if remaining < r.cfg.MinAmount {
			break
		}

		candidates := r.candidateAlternates(t, consumer)
		if len(candidates) == 0 {
			continue
		}

		maxRedistributable := 0.5 * consumer.CurrentLoad
		if remaining < maxRedistributable {
			maxRedistributable = remaining
		}
		if maxRedistributable < r.cfg.MinAmount {
			continue
		}

		scored := r.scoreCandidates(t, consumer, candidates, maxRedistributable)
		actions = append(actions, r.applyDistribution(t, consumer, scored, maxRedistributable, &remaining)...)
	}
	return actions
}

// connectedConsumers returns every active CONSUMER neighbor of t.
func (r *Redistributor) connectedConsumers(t *network.Node) []*network.Node {
	var out []*network.Node
	for _, id := range r.g.GetNeighbors(t.ID) {
		n, ok := r.g.GetNode(id)
		if ok && n.Active && n.Kind == network.Consumer {
			out = append(out, n)
		}
	}
	return out
}

// candidateAlternates returns, for the given consumer, every transformer
// other than t that the consumer is connected to and that clears the
// hysteresis/headroom/recency gates.
func (r *Redistributor) candidateAlternates(t, consumer *network.Node) []*network.Node {
	var out []*network.Node
	for _, id := range r.g.GetNeighbors(consumer.ID) {
		if id == t.ID {
			continue
		}
		cand, ok := r.g.GetNode(id)
		if !ok || cand.Kind != network.Transformer || !cand.Active {
			continue
		}
		if _, recent := r.recentlyReactivated[cand.ID]; recent {
			continue
		}
		if cand.LoadPercentage() > r.cfg.Threshold {
			continue
		}
		if t.LoadPercentage()-cand.LoadPercentage() < r.cfg.MinLoadDifference {
			continue
		}
		if cand.AvailableCapacity()*0.8 <= r.cfg.MinAmount {
			continue
		}
		out = append(out, cand)
	}
	return out
}

// scoreCandidates evaluates each candidate for moving trialAmount away from
// source, per the weighted efficiency/stability formula.
func (r *Redistributor) scoreCandidates(source, consumer *network.Node, candidates []*network.Node, trialAmount float64) []candidateScore {
	out := make([]candidateScore, 0, len(candidates))
	for _, cand := range candidates {
		effScore := r.simulatedEfficiencyScore(source, cand, trialAmount)
		stabilityScore := (1 - cand.LoadPercentage()) * 0.3

		etaEdgeSource := edgeEfficiency(r.g, source.ID, consumer.ID)
		etaEdgeCand := edgeEfficiency(r.g, cand.ID, consumer.ID)
		edgeDelta := etaEdgeCand - etaEdgeSource
		availRatio := cand.AvailableCapacity() / cand.MaxCapacity
		if availRatio > 1 {
			availRatio = 1
		}
		efficiencyScore := 0.6*effScore + 0.2*cand.Efficiency + 0.1*etaEdgeCand + 0.1*availRatio
		efficiencyScore += 0.05 * edgeDelta

		score := 0.7*efficiencyScore + 0.3*stabilityScore
		out = append(out, candidateScore{node: cand, score: score})
	}
	return out
}

// simulatedEfficiencyScore temporarily moves amount from source to
// candidate, computes global efficiency, clamps it to [0,1] over the
// saturation ceiling, then restores both loads.
func (r *Redistributor) simulatedEfficiencyScore(source, candidate *network.Node, amount float64) float64 {
	oldSource, oldCandidate := source.CurrentLoad, candidate.CurrentLoad
	source.CurrentLoad -= amount
	candidate.CurrentLoad += amount

	snap := metrics.Compute(r.g)

	source.CurrentLoad = oldSource
	candidate.CurrentLoad = oldCandidate

	normalized := snap.GlobalEfficiency / metrics.Ceiling
	if normalized > 1 {
		normalized = 1
	}
	if normalized < 0 {
		normalized = 0
	}
	return normalized
}

// applyDistribution spreads maxRedistributable across scored candidates
// proportionally to score (falling back to capacity weighting if every
// score is zero), capping each transfer so the candidate does not exceed
// Threshold*max_capacity and remaining does not go negative.
func (r *Redistributor) applyDistribution(source, consumer *network.Node, scored []candidateScore, maxRedistributable float64, remaining *float64) []Action {
	var totalScore float64
	for _, s := range scored {
		totalScore += s.score
	}

	var actions []Action
	for _, s := range scored {
		var share float64
		if totalScore > 0 {
			share = maxRedistributable * (s.score / totalScore)
		} else {
			var totalCap float64
			for _, other := range scored {
				totalCap += other.node.AvailableCapacity()
			}
			if totalCap > 0 {
				share = maxRedistributable * (s.node.AvailableCapacity() / totalCap)
			}
		}
		if share <= 0 {
			continue
		}

		ceiling := r.cfg.Threshold*s.node.MaxCapacity - s.node.CurrentLoad
		if share > ceiling {
			share = ceiling
		}
		if share > *remaining {
			share = *remaining
		}
		if share < r.cfg.MinAmount {
			continue
		}

		sourceEdge, ok := r.g.GetEdge(source.ID, consumer.ID)
		if !ok {
			continue
		}
		altEdge, ok := r.g.GetEdge(s.node.ID, consumer.ID)
		if !ok {
			continue
		}

		sourceEdge.CurrentFlow -= share
		if sourceEdge.CurrentFlow < 0 {
			sourceEdge.CurrentFlow = 0
		}
		altEdge.CurrentFlow += share

		source.CurrentLoad -= share
		s.node.CurrentLoad += share
		*remaining -= share

		actions = append(actions, Action{ConsumerID: consumer.ID, FromID: source.ID, ToID: s.node.ID, Amount: share})
	}
	return actions
}

func edgeEfficiency(g *network.Graph, from, to int) float64 {
	e, ok := g.GetEdge(from, to)
	if !ok {
		return 1
	}
	return e.Efficiency
}

// CleanupOldRedistributions implements predictive cleanup: for each active
// consumer with any transformer edge carrying > 10 kW, if its hierarchical
// parent's projected load_pct (after reclaiming redistributed flow) stays
// below a safety threshold, the non-parent flows are zeroed; otherwise they
// are retained.
func (r *Redistributor) CleanupOldRedistributions() []Action {
	var actions []Action
	for _, consumer := range r.g.NodesByKind(network.Consumer) {
		if !consumer.Active {
			continue
		}

		hasRedistribution := false
		for _, id := range r.g.GetNeighbors(consumer.ID) {
			t, ok := r.g.GetNode(id)
			if !ok || t.Kind != network.Transformer {
				continue
			}
			if e, ok := r.g.GetEdge(id, consumer.ID); ok && e.CurrentFlow > r.cfg.MinAmount {
				hasRedistribution = true
				break
			}
		}
		if !hasRedistribution {
			continue
		}

		parentID, hasParent := r.g.GetParent(consumer.ID)
		if !hasParent {
			continue
		}
		parent, ok := r.g.GetNode(parentID)
		if !ok || !parent.Active {
			continue
		}
		if parent.LoadPercentage() >= r.cfg.Threshold {
			continue
		}

		var returning float64
		for _, id := range r.g.GetNeighbors(consumer.ID) {
			if id == parentID {
				continue
			}
			if e, ok := r.g.GetEdge(id, consumer.ID); ok {
				returning += e.CurrentFlow
			}
		}

		predictedLoad := parent.CurrentLoad + returning
		predictedPct := predictedLoad / parent.MaxCapacity

		var safety float64
		switch {
		case parent.LoadPercentage() < 0.40:
			safety = 0.50
		case parent.LoadPercentage() >= 0.50:
			safety = 0.52
		default:
			safety = r.cfg.Threshold - 0.05
		}

		aggressive := parent.LoadPercentage() < 0.40
		if aggressive || predictedPct < safety {
			for _, id := range r.g.GetNeighbors(consumer.ID) {
				if id == parentID {
					continue
				}
				e, ok := r.g.GetEdge(id, consumer.ID)
				if !ok || e.CurrentFlow <= 0 {
					continue
				}
				amount := e.CurrentFlow
				e.CurrentFlow = 0
				parent.CurrentLoad += amount
				if other, ok := r.g.GetNode(id); ok {
					other.CurrentLoad -= amount
				}
				actions = append(actions, Action{ConsumerID: consumer.ID, FromID: id, ToID: parentID, Amount: amount})
			}
		}
	}
	return actions
}
