package graph

import (
	"github.com/vanderheijden86/nodemap/pkg/model"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// point is a node centre tagged with its vertex index so results can be
// mapped back after the tree reorders its backing slice.
type point struct {
	index int
	x, y  float64
}

func (p point) coord(d kdtree.Dim) float64 {
	if d == 0 {
		return p.x
	}
	return p.y
}

func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coord(d) - c.(point).coord(d)
}

func (p point) Dims() int { return 2 }

// Distance returns the squared euclidean distance, as kdtree expects.
func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	dx, dy := p.x-q.x, p.y-q.y
	return dx*dx + dy*dy
}

type points []point

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Pivot(d kdtree.Dim) int                { return plane{points: p, dim: d}.Pivot() }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane sorts points along one axis for median selection.
type plane struct {
	points
	dim kdtree.Dim
}

func (p plane) Less(i, j int) bool { return p.points[i].coord(p.dim) < p.points[j].coord(p.dim) }
func (p plane) Swap(i, j int)      { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p plane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfRandoms(p, 100))
}
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}

// kdIndex answers radius queries with a gonum k-d tree.
type kdIndex struct {
	tree    *kdtree.Tree
	queries []point
}

func newKDIndex(centers []model.Position) *kdIndex {
	pts := make(points, len(centers))
	for i, c := range centers {
		pts[i] = point{index: i, x: c.X, y: c.Y}
	}
	queries := make([]point, len(pts))
	copy(queries, pts)
	return &kdIndex{tree: kdtree.New(pts, false), queries: queries}
}

func (k *kdIndex) within(i int, maxSq float64, buf []candidate) []candidate {
	keep := kdtree.NewDistKeeper(maxSq)
	k.tree.NearestSet(keep, k.queries[i])
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		p := cd.Comparable.(point)
		// The keeper is inclusive of its bound; the radius is exclusive.
		if p.index == i || cd.Dist >= maxSq {
			continue
		}
		buf = append(buf, candidate{index: p.index, distSq: cd.Dist})
	}
	return buf
}
