package graph

import (
	"fmt"
	"log"
	"sort"

	"github.com/vanderheijden86/nodemap/pkg/model"
	"gonum.org/v1/gonum/graph/simple"
)

// Graph is an immutable edge list over nodeCount vertices with an
// incident-edge index for highlight lookups.
type Graph struct {
	nodeCount int
	edges     []model.Edge
	incident  [][]int // vertex -> edge indices touching it, ascending
}

// New wraps edges that are already known to be valid, such as the output of
// Builder.Build.
func New(nodeCount int, edges []model.Edge) *Graph {
	g := &Graph{
		nodeCount: nodeCount,
		edges:     edges,
		incident:  make([][]int, nodeCount),
	}
	for ei, e := range edges {
		g.incident[e.From] = append(g.incident[e.From], ei)
		g.incident[e.To] = append(g.incident[e.To], ei)
	}
	return g
}

// FromEdges validates edges against nodeCount. In strict mode the first
// malformed edge is returned as an error wrapping model.ErrInvalidTarget;
// otherwise malformed edges are logged and skipped.
func FromEdges(nodeCount int, edges []model.Edge, strict bool, logger *log.Logger) (*Graph, error) {
	if logger == nil {
		logger = log.Default()
	}
	valid := make([]model.Edge, 0, len(edges))
	for _, e := range edges {
		if err := e.Validate(nodeCount); err != nil {
			if strict {
				return nil, fmt.Errorf("building graph: %w", err)
			}
			logger.Printf("graph: skipping malformed edge: %v", err)
			continue
		}
		valid = append(valid, e)
	}
	return New(nodeCount, valid), nil
}

// NodeCount returns the number of vertices.
func (g *Graph) NodeCount() int { return g.nodeCount }

// Edges returns the edge list. Callers must not modify it.
func (g *Graph) Edges() []model.Edge { return g.edges }

// Incident returns the indices of edges with n as either endpoint.
// Out-of-range vertices have no incident edges.
func (g *Graph) Incident(n int) []int {
	if n < 0 || n >= g.nodeCount {
		return nil
	}
	return g.incident[n]
}

// OutDegree counts the edges leaving n.
func (g *Graph) OutDegree(n int) int {
	deg := 0
	for _, ei := range g.Incident(n) {
		if g.edges[ei].From == n {
			deg++
		}
	}
	return deg
}

// Neighbours returns the distinct vertices adjacent to n in either direction.
func (g *Graph) Neighbours(n int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, ei := range g.Incident(n) {
		e := g.edges[ei]
		other := e.To
		if other == n {
			other = e.From
		}
		if !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	sort.Ints(out)
	return out
}

// Directed returns the graph as a gonum directed graph. Vertex IDs equal node
// indices; reverse duplicates become two distinct arcs.
func (g *Graph) Directed() *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	for i := 0; i < g.nodeCount; i++ {
		dg.AddNode(simple.Node(i))
	}
	for _, e := range g.edges {
		dg.SetEdge(simple.Edge{F: simple.Node(e.From), T: simple.Node(e.To)})
	}
	return dg
}

// Undirected returns the graph with edge direction dropped; reverse
// duplicates collapse into one edge.
func (g *Graph) Undirected() *simple.UndirectedGraph {
	ug := simple.NewUndirectedGraph()
	for i := 0; i < g.nodeCount; i++ {
		ug.AddNode(simple.Node(i))
	}
	for _, e := range g.edges {
		ug.SetEdge(simple.Edge{F: simple.Node(e.From), T: simple.Node(e.To)})
	}
	return ug
}
