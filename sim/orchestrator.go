// Package sim implements the EcoGrid+ Orchestrator: the per-tick pipeline
// that ties the sensor fabric, infrastructure roll-up, redistributor,
// balancer, overload detector and priority queue together, plus the
// external command surface and observables.
package sim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/BrunoSantos751/EcoGrid/balancer"
	"github.com/BrunoSantos751/EcoGrid/metrics"
	"github.com/BrunoSantos751/EcoGrid/network"
	"github.com/BrunoSantos751/EcoGrid/redistribute"
	"github.com/BrunoSantos751/EcoGrid/sensor"
	"github.com/BrunoSantos751/EcoGrid/simconfig"
	"github.com/BrunoSantos751/EcoGrid/structures"
)

const logCapacity = 50

// redistributionCooldownTicks is the minimum gap between two
// check_and_redistribute runs (spec.md SS4.9 step 3).
const redistributionCooldownTicks = 6

// purgeEventsEveryTicks is how often stale queued events are age-purged.
const purgeEventsEveryTicks = 50

// maxEventsPerTick bounds how many queued events _handle_event processes
// in a single step.
const maxEventsPerTick = 5

// Orchestrator owns every piece of simulation state and drives step().
type Orchestrator struct {
	graph   *network.Graph
	ids     *structures.KeyedIndex
	queue   *structures.PriorityQueue
	bal     *balancer.Balancer
	redis   *redistribute.Redistributor
	fabric  *sensor.Fabric
	cfg     simconfig.Config

	tick                  uint64
	lastRedistributionTick uint64

	log []string

	now func() time.Time
}

// New wires an Orchestrator around g using cfg's tunables. rngSource seeds
// the sensor fabric; a nil source uses a fixed default (deterministic).
func New(g *network.Graph, cfg simconfig.Config, rngSource rand.Source) *Orchestrator {
	ids := structures.NewKeyedIndex()
	for _, n := range g.AllNodesSorted() {
		ids.Insert(n)
	}

	return &Orchestrator{
		graph:  g,
		ids:    ids,
		queue:  structures.NewPriorityQueue(cfg.Queue.MaxSize),
		bal:    balancer.New(g, cfg.Balancer.ToBalancerConfig()),
		redis:  redistribute.New(g, cfg.Redistributor.ToRedistributorConfig()),
		fabric: sensor.New(rngSource),
		cfg:    cfg,
		now:    time.Now,
	}
}

// Graph exposes the underlying graph for read-only observation.
func (o *Orchestrator) Graph() *network.Graph { return o.graph }

// Tick returns the current tick count.
func (o *Orchestrator) Tick() uint64 { return o.tick }

// Queue exposes the underlying priority queue, mainly for tests and the
// get_queue_statistics observable.
func (o *Orchestrator) Queue() *structures.PriorityQueue { return o.queue }

// Step advances the simulation by one tick, per spec.md SS4.9's pipeline.
func (o *Orchestrator) Step() {
	o.tick++

	if o.cfg.EnableNoise {
		o.ingestWithRedistributionAwareness()
	}

	if o.tick%3 == 0 {
		cleanupActions := o.redis.CleanupOldRedistributions()
		if len(cleanupActions) > 0 {
			o.rollUp()
			o.logf("redistribution cleanup: %d flow(s) reclaimed", len(cleanupActions))
		}
		if o.tick-o.lastRedistributionTick >= redistributionCooldownTicks {
			actions := o.redis.CheckAndRedistribute(o.tick)
			if len(actions) > 0 {
				o.lastRedistributionTick = o.tick
				o.rollUp()
				o.logf("redistributed %d transfer(s)", len(actions))
			}
		}
	}

	if o.tick%3 == 0 {
		o.detectOverloads()
		o.protectCriticalConsumers()
	}

	if o.tick%purgeEventsEveryTicks == 0 {
		removed := o.queue.ClearOldEvents(o.cfg.Queue.MaxAgeSeconds, o.now())
		if removed > 0 {
			o.logf("purged %d aged event(s)", removed)
		}
	}

	o.processEvents()
	o.decayTransientFlows()
	o.rollUp()
}

// ingestWithRedistributionAwareness snapshots consumer loads that currently
// carry redistribution flow, collects one sensor tick, then rescales each
// changed consumer's flows proportionally before the roll-up.
func (o *Orchestrator) ingestWithRedistributionAwareness() {
	type snapshot struct {
		node    *network.Node
		oldLoad float64
	}
	var snapshots []snapshot
	for _, c := range o.graph.NodesByKind(network.Consumer) {
		if !c.Active {
			continue
		}
		for _, id := range o.graph.GetNeighbors(c.ID) {
			if e, ok := o.graph.GetEdge(id, c.ID); ok && e.CurrentFlow > 0 {
				snapshots = append(snapshots, snapshot{node: c, oldLoad: c.CurrentLoad})
				break
			}
		}
	}

	o.fabric.CollectTick(o.graph, o.tick)

	for _, s := range snapshots {
		if absDiff(s.node.CurrentLoad, s.oldLoad) > 0.1 {
			o.recalculateProportionalDistribution(s.node, s.oldLoad)
		}
	}

	o.rollUp()
}

// recalculateProportionalDistribution scales every incoming transformer
// flow by new/old when a snapshotted consumer's load moved.
func (o *Orchestrator) recalculateProportionalDistribution(c *network.Node, oldLoad float64) {
	var total float64
	var incoming []*network.Edge
	for _, id := range o.graph.GetNeighbors(c.ID) {
		if e, ok := o.graph.GetEdge(id, c.ID); ok && e.CurrentFlow > 0 {
			incoming = append(incoming, e)
			total += e.CurrentFlow
		}
	}
	if total <= 0 || oldLoad == 0 {
		return
	}
	ratio := c.CurrentLoad / oldLoad
	for _, e := range incoming {
		e.CurrentFlow *= ratio
		if e.CurrentFlow < 0 {
			e.CurrentFlow = 0
		}
	}
}

// processEvents drains up to maxEventsPerTick queued events through
// _handle_event, reinserting any that request to be kept.
func (o *Orchestrator) processEvents() {
	for i := 0; i < maxEventsPerTick; i++ {
		ev, ok := o.queue.Pop()
		if !ok {
			return
		}
		if o.handleEvent(ev) {
			o.queue.Push(ev, false)
		}
	}
}

// handleEvent applies whatever side effect an event represents and returns
// whether it should be kept on the queue (re-pushed without dedup).
func (o *Orchestrator) handleEvent(ev structures.Event) bool {
	switch ev.Type {
	case structures.NodeFailure:
		return false
	case structures.OverloadWarning:
		n, ok := o.graph.GetNode(ev.NodeID)
		if !ok || !n.Active || !n.IsOverloaded() {
			return false
		}
		return true
	case structures.Maintenance:
		return false
	case structures.LoadChange:
		return false
	default:
		return false
	}
}

// decayTransientFlows implements step 7 of the pipeline: hierarchical
// transformer<->consumer flows are left untouched; every other edge's flow
// decays by 30% per tick, or is clamped to zero once it drops at or below 1.
func (o *Orchestrator) decayTransientFlows() {
	for _, n := range o.graph.AllNodesSorted() {
		for _, e := range o.graph.NeighborEdges(n.ID) {
			if isHierarchicalPair(o.graph, e.SourceID, e.TargetID) && e.CurrentFlow > 0 {
				continue
			}
			if e.CurrentFlow > 1.0 {
				e.CurrentFlow *= 0.7
			} else {
				e.CurrentFlow = 0
			}
		}
	}
}

func isHierarchicalPair(g *network.Graph, a, b int) bool {
	na, ok := g.GetNode(a)
	if !ok {
		return false
	}
	nb, ok := g.GetNode(b)
	if !ok {
		return false
	}
	tOK := na.Kind == network.Transformer && nb.Kind == network.Consumer
	cOK := na.Kind == network.Consumer && nb.Kind == network.Transformer
	return tOK || cOK
}

// logf appends a formatted line to the bounded log, evicting the oldest
// entry once the log exceeds logCapacity.
func (o *Orchestrator) logf(format string, args ...interface{}) {
	line := fmt.Sprintf("[tick %d] %s", o.tick, fmt.Sprintf(format, args...))
	o.log = append(o.log, line)
	if len(o.log) > logCapacity {
		o.log = o.log[len(o.log)-logCapacity:]
	}
}

// Log returns a copy of the last 50 log lines.
func (o *Orchestrator) Log() []string {
	out := make([]string, len(o.log))
	copy(out, o.log)
	return out
}

// Metrics is the get_metrics observable's return shape.
type Metrics struct {
	Tick       uint64
	TotalLoad  float64
	Efficiency float64
}

// GetMetrics reports the current tick, total active load, and global
// efficiency.
func (o *Orchestrator) GetMetrics() Metrics {
	var total float64
	for _, n := range o.graph.AllNodesSorted() {
		if n.Active {
			total += n.CurrentLoad
		}
	}
	snap := metrics.Compute(o.graph)
	return Metrics{Tick: o.tick, TotalLoad: total, Efficiency: snap.GlobalEfficiency}
}

// GetQueueStatistics exposes the priority queue's current statistics.
func (o *Orchestrator) GetQueueStatistics() structures.Statistics {
	return o.queue.GetStatistics()
}
