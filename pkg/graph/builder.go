// Package graph builds the sparse proximity graph drawn between map nodes.
//
// Every node gets up to MaxNeighbors outgoing edges to its nearest other
// nodes whose centres lie strictly closer than MaxDistance. Edges are stored
// directed; a pair may appear once in each direction when both endpoints
// pick each other, and those reverse duplicates are kept.
package graph

import (
	"fmt"
	"sort"

	"github.com/vanderheijden86/nodemap/pkg/model"
)

// IndexKind selects the neighbour search strategy.
type IndexKind string

const (
	IndexAuto   IndexKind = "auto"   // kd-tree above KDTreeThreshold nodes, brute force below
	IndexBrute  IndexKind = "brute"  // O(n²) pairwise scan
	IndexKDTree IndexKind = "kdtree" // gonum k-d tree radius query
)

// KDTreeThreshold is the node count above which IndexAuto switches to the
// k-d tree.
const KDTreeThreshold = 256

// IsValid returns true if the index kind is a recognized value
func (k IndexKind) IsValid() bool {
	switch k {
	case IndexAuto, IndexBrute, IndexKDTree, "":
		return true
	}
	return false
}

// Options configures edge selection.
type Options struct {
	MaxNeighbors int       `yaml:"max_neighbors" koanf:"max_neighbors"`
	MaxDistance  float64   `yaml:"max_distance" koanf:"max_distance"` // exclusive
	NodeSize     float64   `yaml:"node_size" koanf:"node_size"`       // centres are position + NodeSize/2
	Index        IndexKind `yaml:"index" koanf:"index"`
}

// DefaultOptions returns two neighbours within 600 units of 150-unit nodes.
func DefaultOptions() Options {
	return Options{
		MaxNeighbors: 2,
		MaxDistance:  600,
		NodeSize:     150,
		Index:        IndexAuto,
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.MaxNeighbors < 0 {
		return fmt.Errorf("max_neighbors must be non-negative, got %d", o.MaxNeighbors)
	}
	if o.MaxDistance < 0 {
		return fmt.Errorf("max_distance must be non-negative, got %v", o.MaxDistance)
	}
	if !o.Index.IsValid() {
		return fmt.Errorf("unknown neighbour index %q (want auto, brute or kdtree)", o.Index)
	}
	return nil
}

// candidate is a potential neighbour of a query node.
type candidate struct {
	index  int
	distSq float64
}

// byDistance orders candidates nearest first, ties by lower index.
func byDistance(c []candidate) {
	sort.Slice(c, func(a, b int) bool {
		if c[a].distSq != c[b].distSq {
			return c[a].distSq < c[b].distSq
		}
		return c[a].index < c[b].index
	})
}

// neighbourIndex answers "which nodes lie strictly within r of node i".
type neighbourIndex interface {
	within(i int, maxSq float64, buf []candidate) []candidate
}

// Builder computes edge sets. The zero value is not usable; use NewBuilder.
type Builder struct {
	opts Options
}

// NewBuilder creates a builder. Zero-valued fields fall back to defaults.
func NewBuilder(opts Options) *Builder {
	def := DefaultOptions()
	if opts.MaxNeighbors == 0 && opts.MaxDistance == 0 {
		opts.MaxNeighbors = def.MaxNeighbors
		opts.MaxDistance = def.MaxDistance
	}
	if opts.NodeSize == 0 {
		opts.NodeSize = def.NodeSize
	}
	if opts.Index == "" {
		opts.Index = IndexAuto
	}
	return &Builder{opts: opts}
}

// Options returns the builder's effective options.
func (b *Builder) Options() Options {
	return b.opts
}

// Build returns the outgoing edges of every node, grouped by source index in
// ascending order. Node i in the slice is vertex i.
func (b *Builder) Build(nodes []model.Node) []model.Edge {
	if len(nodes) < 2 || b.opts.MaxNeighbors <= 0 {
		return nil
	}

	centers := make([]model.Position, len(nodes))
	for i, n := range nodes {
		centers[i] = n.Center(b.opts.NodeSize)
	}

	idx := b.index(centers)
	maxSq := b.opts.MaxDistance * b.opts.MaxDistance

	edges := make([]model.Edge, 0, len(nodes)*b.opts.MaxNeighbors)
	var buf []candidate
	for i := range centers {
		buf = idx.within(i, maxSq, buf[:0])
		byDistance(buf)
		for k := 0; k < len(buf) && k < b.opts.MaxNeighbors; k++ {
			edges = append(edges, model.Edge{From: i, To: buf[k].index})
		}
	}
	return edges
}

func (b *Builder) index(centers []model.Position) neighbourIndex {
	switch b.opts.Index {
	case IndexBrute:
		return bruteIndex(centers)
	case IndexKDTree:
		return newKDIndex(centers)
	}
	if len(centers) > KDTreeThreshold {
		return newKDIndex(centers)
	}
	return bruteIndex(centers)
}

// BuildEdges builds edges with DefaultOptions.
func BuildEdges(nodes []model.Node) []model.Edge {
	return NewBuilder(DefaultOptions()).Build(nodes)
}

// bruteIndex scans every pair.
type bruteIndex []model.Position

func (p bruteIndex) within(i int, maxSq float64, buf []candidate) []candidate {
	for j := range p {
		if j == i {
			continue
		}
		if d := p[i].DistanceSq(p[j]); d < maxSq {
			buf = append(buf, candidate{index: j, distSq: d})
		}
	}
	return buf
}
