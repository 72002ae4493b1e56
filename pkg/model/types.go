package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidTarget is returned when a node or edge refers to an index
// outside the current node set.
var ErrInvalidTarget = errors.New("invalid target")

// Item is one entry of the source collection rendered as a node on the map.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ImageSource string `json:"src"`
	Description string `json:"description,omitempty"`
}

// Validate checks if the item data is usable for layout
func (i *Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item ID cannot be empty")
	}
	if i.Title == "" {
		return fmt.Errorf("item %s: title cannot be empty", i.ID)
	}
	return nil
}

// Position is a point in map space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by (dx, dy).
func (p Position) Add(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// DistanceSq returns the squared euclidean distance between p and q.
func (p Position) DistanceSq(q Position) float64 {
	dx, dy := q.X-p.X, q.Y-p.Y
	return dx*dx + dy*dy
}

// Distance returns the euclidean distance between p and q.
func (p Position) Distance(q Position) float64 {
	return math.Sqrt(p.DistanceSq(q))
}

// IsFinite reports whether both coordinates are real numbers.
func (p Position) IsFinite() bool {
	return IsFinite(p.X) && IsFinite(p.Y)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Node is a placed item. Index is the position in the source sequence and
// doubles as the graph vertex index.
type Node struct {
	ID       string   `json:"id"`
	Index    int      `json:"index"`
	Position Position `json:"position"`
}

// Center returns the centre of the node's square footprint of the given size.
func (n Node) Center(size float64) Position {
	return n.Position.Add(size/2, size/2)
}

// Edge is a directed proximity connection between two node indices.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Touches reports whether n is either endpoint of the edge.
func (e Edge) Touches(n int) bool {
	return e.From == n || e.To == n
}

// Validate checks the edge against a node set of the given size.
func (e Edge) Validate(nodeCount int) error {
	if e.From < 0 || e.From >= nodeCount {
		return fmt.Errorf("edge %d->%d: from index out of range [0,%d): %w", e.From, e.To, nodeCount, ErrInvalidTarget)
	}
	if e.To < 0 || e.To >= nodeCount {
		return fmt.Errorf("edge %d->%d: to index out of range [0,%d): %w", e.From, e.To, nodeCount, ErrInvalidTarget)
	}
	if e.From == e.To {
		return fmt.Errorf("edge %d->%d: self edge: %w", e.From, e.To, ErrInvalidTarget)
	}
	return nil
}

// MapSnapshot is the serialisable form of a built map, shared by exporters
// and the preview server.
type MapSnapshot struct {
	Extent   float64 `json:"extent"`
	NodeSize float64 `json:"node_size"`
	Items    []Item  `json:"items"`
	Nodes    []Node  `json:"nodes"`
	Edges    []Edge  `json:"edges"`
	Hash     string  `json:"hash,omitempty"`
}
