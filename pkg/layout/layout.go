// Package layout places items on a square map using a jittered
// golden-angle spiral.
package layout

import (
	"fmt"
	"math"

	"github.com/vanderheijden86/nodemap/pkg/model"
)

// Config holds the geometry of the map canvas and the spiral.
type Config struct {
	Extent     float64 `yaml:"extent" koanf:"extent"`           // side length of the square map
	Padding    float64 `yaml:"padding" koanf:"padding"`         // inset from every map edge
	NodeSize   float64 `yaml:"node_size" koanf:"node_size"`     // side length of a node's footprint
	AngleStep  float64 `yaml:"angle_step" koanf:"angle_step"`   // radians between successive indices
	BaseRadius float64 `yaml:"base_radius" koanf:"base_radius"` // radius of index 0
	RadiusStep float64 `yaml:"radius_step" koanf:"radius_step"`
	RadiusSpan float64 `yaml:"radius_span" koanf:"radius_span"` // radius growth wraps at this value
	Jitter     float64 `yaml:"jitter" koanf:"jitter"`           // max absolute offset per axis
}

// DefaultConfig returns the standard 2000x2000 map geometry.
func DefaultConfig() Config {
	return Config{
		Extent:     2000,
		Padding:    200,
		NodeSize:   150,
		AngleStep:  2.4,
		BaseRadius: 100,
		RadiusStep: 40,
		RadiusSpan: 700,
		Jitter:     50,
	}
}

// Validate checks that the configuration leaves room for at least one node.
func (c Config) Validate() error {
	if c.Extent <= 0 {
		return fmt.Errorf("layout extent must be positive, got %v", c.Extent)
	}
	if c.Padding < 0 || c.NodeSize < 0 || c.Jitter < 0 {
		return fmt.Errorf("layout padding, node size and jitter must be non-negative")
	}
	if c.Extent-2*c.Padding-c.NodeSize < 0 {
		return fmt.Errorf("layout extent %v too small for padding %v and node size %v", c.Extent, c.Padding, c.NodeSize)
	}
	if c.RadiusSpan <= 0 {
		return fmt.Errorf("layout radius span must be positive, got %v", c.RadiusSpan)
	}
	return nil
}

// Bounds returns the inclusive range every coordinate is clamped to.
func (c Config) Bounds() (lo, hi float64) {
	return c.Padding, c.Extent - c.Padding - c.NodeSize
}

// Center returns the spiral origin.
func (c Config) Center() model.Position {
	inner := c.Extent - 2*c.Padding
	return model.Position{X: c.Padding + inner/2, Y: c.Padding + inner/2}
}

// Engine computes node positions. It is cheap to construct and holds no
// per-load state apart from its jitter source.
type Engine struct {
	cfg    Config
	jitter Jitter
}

// New creates a layout engine. A nil jitter source places nodes exactly on
// the spiral.
func New(cfg Config, jitter Jitter) *Engine {
	if jitter == nil {
		jitter = NoJitter{}
	}
	return &Engine{cfg: cfg, jitter: jitter}
}

// Config returns the geometry the engine places nodes in.
func (e *Engine) Config() Config {
	return e.cfg
}

// Spiral returns the un-jittered, un-clamped spiral point for index.
func (e *Engine) Spiral(index int) model.Position {
	angle := float64(index) * e.cfg.AngleStep
	radius := e.cfg.BaseRadius + math.Mod(float64(index)*e.cfg.RadiusStep, e.cfg.RadiusSpan)
	c := e.cfg.Center()
	return model.Position{
		X: c.X + math.Cos(angle)*radius,
		Y: c.Y + math.Sin(angle)*radius,
	}
}

// Place returns the position of the node at index. The second argument is
// the collection size, which placement of an index does not depend on.
func (e *Engine) Place(index, _ int) model.Position {
	p := e.Spiral(index)
	p.X += e.jitter.Rand()
	p.Y += e.jitter.Rand()

	lo, hi := e.cfg.Bounds()
	return model.Position{X: clamp(p.X, lo, hi), Y: clamp(p.Y, lo, hi)}
}

// PlaceAll lays out a whole item collection in order.
func (e *Engine) PlaceAll(items []model.Item) []model.Node {
	nodes := make([]model.Node, len(items))
	for i, it := range items {
		nodes[i] = model.Node{
			ID:       it.ID,
			Index:    i,
			Position: e.Place(i, len(items)),
		}
	}
	return nodes
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
