// Package topology generates deterministic EcoGrid+ network fixtures, used
// by the CLI's `run` command.
//
// Option constructors validate and panic on meaningless inputs; the builder
// itself never panics once invoked.
package topology

import (
	"fmt"
	"math/rand"

	"github.com/BrunoSantos751/EcoGrid/network"
)

// BuilderOption customizes a Build call by mutating a builderConfig before
// construction begins.
type BuilderOption func(*builderConfig)

type builderConfig struct {
	rng *rand.Rand

	substations         int
	transformersPerSub  int
	consumersPerTrans   int
	meshSubstations     bool

	substationCapacity  float64
	transformerCapacity float64
	consumerCapacity    float64

	nominalVolts float64
}

func defaultConfig() builderConfig {
	return builderConfig{
		rng:                 rand.New(rand.NewSource(1)),
		substations:         1,
		transformersPerSub:  3,
		consumersPerTrans:   4,
		substationCapacity:  5000,
		transformerCapacity: 500,
		consumerCapacity:    50,
		nominalVolts:        220,
	}
}

// WithSeed locks the RNG used for edge distance/resistance jitter.
func WithSeed(seed int64) BuilderOption {
	return func(c *builderConfig) { c.rng = rand.New(rand.NewSource(seed)) }
}

// WithSubstations sets the number of SUBSTATION roots. Panics if n < 1.
func WithSubstations(n int) BuilderOption {
	if n < 1 {
		panic("topology: WithSubstations(n < 1)")
	}
	return func(c *builderConfig) { c.substations = n }
}

// WithTransformersPerSubstation sets how many TRANSFORMERs hang off each
// SUBSTATION. Panics if n < 1.
func WithTransformersPerSubstation(n int) BuilderOption {
	if n < 1 {
		panic("topology: WithTransformersPerSubstation(n < 1)")
	}
	return func(c *builderConfig) { c.transformersPerSub = n }
}

// WithConsumersPerTransformer sets how many CONSUMERs hang off each
// TRANSFORMER. Panics if n < 1.
func WithConsumersPerTransformer(n int) BuilderOption {
	if n < 1 {
		panic("topology: WithConsumersPerTransformer(n < 1)")
	}
	return func(c *builderConfig) { c.consumersPerTrans = n }
}

// WithMeshSubstations wires a physical edge between every pair of
// SUBSTATIONs, enabling SUBSTATION->SUBSTATION cascade. It adds no edge
// from a SUBSTATION to another substation's TRANSFORMERs.
func WithMeshSubstations(enabled bool) BuilderOption {
	return func(c *builderConfig) { c.meshSubstations = enabled }
}

// WithCapacities overrides the per-kind max_capacity used for generated
// nodes. Panics if any value is <= 0.
func WithCapacities(substation, transformer, consumer float64) BuilderOption {
	if substation <= 0 || transformer <= 0 || consumer <= 0 {
		panic("topology: WithCapacities(<=0)")
	}
	return func(c *builderConfig) {
		c.substationCapacity = substation
		c.transformerCapacity = transformer
		c.consumerCapacity = consumer
	}
}

// Build assembles a radial SUBSTATION->TRANSFORMER->CONSUMER network
// according to opts and returns the populated Graph. Node ids are assigned
// sequentially in construction order (all substations first, then each
// transformer followed by its own consumers), which is deterministic across
// calls with equal options.
func Build(opts ...BuilderOption) (*network.Graph, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	g := network.NewGraph()
	nextID := 1

	var substationIDs []int
	for s := 0; s < cfg.substations; s++ {
		id := nextID
		nextID++
		n := &network.Node{
			ID: id, Kind: network.Substation, MaxCapacity: cfg.substationCapacity,
			Active: true, Efficiency: 0.98, ParentID: network.NoParent,
			NominalVolts: cfg.nominalVolts, X: float64(s) * 100,
		}
		if err := g.AddNode(n); err != nil {
			return nil, fmt.Errorf("topology: substation %d: %w", id, err)
		}
		substationIDs = append(substationIDs, id)
	}

	if cfg.meshSubstations {
		for i := 0; i < len(substationIDs); i++ {
			for j := i + 1; j < len(substationIDs); j++ {
				if err := g.AddEdge(substationIDs[i], substationIDs[j], 5.0, 0.01, 0.99); err != nil {
					return nil, fmt.Errorf("topology: substation mesh edge: %w", err)
				}
			}
		}
	}

	for _, subID := range substationIDs {
		for t := 0; t < cfg.transformersPerSub; t++ {
			tID := nextID
			nextID++
			n := &network.Node{
				ID: tID, Kind: network.Transformer, MaxCapacity: cfg.transformerCapacity,
				Active: true, Efficiency: 0.95, ParentID: subID,
				NominalVolts: cfg.nominalVolts, X: float64(t) * 20, Y: 50,
			}
			if err := g.AddNode(n); err != nil {
				return nil, fmt.Errorf("topology: transformer %d: %w", tID, err)
			}
			if err := g.AddEdge(subID, tID, cfg.jitter(1.0, 3.0), cfg.jitter(0.02, 0.08), 0.97); err != nil {
				return nil, fmt.Errorf("topology: substation-transformer edge: %w", err)
			}

			for c := 0; c < cfg.consumersPerTrans; c++ {
				cID := nextID
				nextID++
				cn := &network.Node{
					ID: cID, Kind: network.Consumer, MaxCapacity: cfg.consumerCapacity,
					Active: true, Efficiency: 0.99, ParentID: tID,
					NominalVolts: cfg.nominalVolts, X: float64(c) * 5, Y: 100,
				}
				if err := g.AddNode(cn); err != nil {
					return nil, fmt.Errorf("topology: consumer %d: %w", cID, err)
				}
				if err := g.AddEdge(tID, cID, cfg.jitter(0.1, 0.5), cfg.jitter(0.05, 0.15), 0.99); err != nil {
					return nil, fmt.Errorf("topology: transformer-consumer edge: %w", err)
				}
			}
		}
	}

	return g, nil
}

func (c *builderConfig) jitter(lo, hi float64) float64 {
	return lo + c.rng.Float64()*(hi-lo)
}
