package analysis

import (
	"context"
	"math/rand/v2"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
)

// BetweennessMode records how centrality was computed.
type BetweennessMode string

const (
	BetweennessExact BetweennessMode = "exact"
	// BetweennessApproximate runs Brandes from k pivots and scales by n/k.
	BetweennessApproximate BetweennessMode = "approximate"
	BetweennessSkip        BetweennessMode = "skip"
)

// BetweennessResult holds centrality scores keyed by node index.
type BetweennessResult struct {
	Scores     map[int64]float64 `json:"-"`
	Mode       BetweennessMode   `json:"mode"`
	SampleSize int               `json:"sample_size"`
	TotalNodes int               `json:"total_nodes"`
	Elapsed    time.Duration     `json:"elapsed"`
}

const pivotWorkers = 4

// Betweenness scores how often each node lies on shortest paths between
// other nodes, so items bridging clusters of the map score highest. When
// sampleSize covers the graph gonum's exact implementation runs; otherwise
// sampleSize pivots are drawn with seed and the same seed gives the same
// scores.
func Betweenness(ctx context.Context, g *simple.UndirectedGraph, sampleSize int, seed uint64) (res BetweennessResult, err error) {
	start := time.Now()
	ids := sortedIDs(g)
	n := len(ids)
	res = BetweennessResult{
		Scores:     make(map[int64]float64, n),
		Mode:       BetweennessApproximate,
		SampleSize: max(sampleSize, 1),
		TotalNodes: n,
	}
	defer func() { res.Elapsed = time.Since(start) }()

	switch {
	case n == 0:
		return res, nil
	case res.SampleSize >= n:
		res.Scores = network.Betweenness(g)
		res.Mode = BetweennessExact
		res.SampleSize = n
		return res, nil
	}

	dense := make(map[int64]int, n)
	for i, id := range ids {
		dense[id] = i
	}
	adj := make([][]int, n)
	for i, id := range ids {
		for _, nb := range graph.NodesOf(g.From(id)) {
			adj[i] = append(adj[i], dense[nb.ID()])
		}
		slices.Sort(adj[i])
	}

	pivots := pivotIndexes(n, res.SampleSize, seed)
	partial := make([][]float64, len(pivots))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(pivotWorkers)
	for k, p := range pivots {
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			partial[k] = dependencies(adj, p)
			return nil
		})
	}
	if err = eg.Wait(); err != nil {
		return BetweennessResult{}, err
	}

	// Summing in pivot order keeps the float result reproducible. The
	// extra halving matches gonum, which counts each unordered pair once.
	scale := float64(n) / float64(res.SampleSize) / 2
	for _, dep := range partial {
		for i, v := range dep {
			if v != 0 {
				res.Scores[ids[i]] += v * scale
			}
		}
	}
	return res, nil
}

func sortedIDs(g *simple.UndirectedGraph) []int64 {
	nodes := graph.NodesOf(g.Nodes())
	ids := make([]int64, len(nodes))
	for i, nd := range nodes {
		ids[i] = nd.ID()
	}
	slices.Sort(ids)
	return ids
}

// pivotIndexes draws k distinct indexes from [0, n).
func pivotIndexes(n, k int, seed uint64) []int {
	rng := rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	return rng.Perm(n)[:min(k, n)]
}

// dependencies returns the Brandes dependency of every node on source,
// with adj holding each node's neighbours by dense index.
func dependencies(adj [][]int, source int) []float64 {
	n := len(adj)
	dist := make([]int, n)
	for i := range dist {
		dist[i] = -1
	}
	paths := make([]float64, n)
	preds := make([][]int, n)
	order := make([]int, 0, n)

	dist[source], paths[source] = 0, 1
	for queue := []int{source}; len(queue) > 0; queue = queue[1:] {
		v := queue[0]
		order = append(order, v)
		for _, w := range adj[v] {
			if dist[w] < 0 {
				dist[w] = dist[v] + 1
				queue = append(queue, w)
			}
			if dist[w] == dist[v]+1 {
				paths[w] += paths[v]
				preds[w] = append(preds[w], v)
			}
		}
	}

	dep := make([]float64, n)
	for i := len(order) - 1; i > 0; i-- {
		w := order[i]
		for _, v := range preds[w] {
			dep[v] += paths[v] / paths[w] * (1 + dep[w])
		}
	}
	dep[source] = 0
	return dep
}

// RecommendSampleSize picks a pivot count for nodeCount nodes: exact below
// 100, then a shrinking fraction.
func RecommendSampleSize(nodeCount int) int {
	switch {
	case nodeCount < 100:
		return nodeCount
	case nodeCount < 500:
		return max(nodeCount/5, 50)
	case nodeCount < 2000:
		return 100
	default:
		return 200
	}
}
