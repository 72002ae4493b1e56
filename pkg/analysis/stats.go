// Package analysis summarises a built map: connectivity, degree spread,
// edge lengths and which nodes bridge the rest.
package analysis

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/graph/topo"

	nmgraph "github.com/vanderheijden86/nodemap/pkg/graph"
	"github.com/vanderheijden86/nodemap/pkg/model"
)

// Config caps the outputs of Compute.
type Config struct {
	HubLimit   int    `json:"hub_limit"`   // max hubs reported (default 5)
	SampleSize int    `json:"sample_size"` // betweenness pivots; 0 picks one from the node count
	Seed       uint64 `json:"seed"`
	// SkipBetweenness leaves Hubs empty.
	SkipBetweenness bool `json:"skip_betweenness"`
}

// DefaultConfig returns safe defaults.
func DefaultConfig() Config {
	return Config{HubLimit: 5, Seed: 1}
}

// Hub is a node ranked by betweenness.
type Hub struct {
	Index int     `json:"index"`
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Stats describes one map.
type Stats struct {
	Nodes            int             `json:"nodes"`
	Edges            int             `json:"edges"`
	MutualEdges      int             `json:"mutual_edges"` // edges whose reverse also exists
	Components       int             `json:"components"`
	LargestComponent int             `json:"largest_component"`
	Isolated         []int           `json:"isolated"`
	OutDegree        map[int]int     `json:"out_degree"` // out-degree -> node count
	MeanEdgeLength   float64         `json:"mean_edge_length"`
	MaxEdgeLength    float64         `json:"max_edge_length"`
	Hubs             []Hub           `json:"hubs"`
	Betweenness      BetweennessMode `json:"betweenness"`
}

// Compute gathers Stats for the map. nodes and items must be parallel to
// the graph's vertices; nodeSize gives node centres for edge lengths.
func Compute(ctx context.Context, g *nmgraph.Graph, nodes []model.Node, items []model.Item, nodeSize float64, cfg Config) (*Stats, error) {
	if cfg.HubLimit <= 0 {
		cfg.HubLimit = DefaultConfig().HubLimit
	}
	s := &Stats{
		Nodes:     g.NodeCount(),
		Edges:     len(g.Edges()),
		OutDegree: make(map[int]int),
		Isolated:  []int{},
		Hubs:      []Hub{},
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		comps := topo.ConnectedComponents(g.Undirected())
		s.Components = len(comps)
		for _, c := range comps {
			if len(c) > s.LargestComponent {
				s.LargestComponent = len(c)
			}
		}
		return nil
	})

	eg.Go(func() error {
		seen := make(map[model.Edge]bool, len(g.Edges()))
		for _, e := range g.Edges() {
			seen[e] = true
		}
		var total float64
		for _, e := range g.Edges() {
			if seen[model.Edge{From: e.To, To: e.From}] {
				s.MutualEdges++
			}
			if e.From < len(nodes) && e.To < len(nodes) {
				d := nodes[e.From].Center(nodeSize).Distance(nodes[e.To].Center(nodeSize))
				total += d
				s.MaxEdgeLength = math.Max(s.MaxEdgeLength, d)
			}
		}
		if len(g.Edges()) > 0 {
			s.MeanEdgeLength = total / float64(len(g.Edges()))
		}
		for n := 0; n < g.NodeCount(); n++ {
			s.OutDegree[g.OutDegree(n)]++
			if len(g.Incident(n)) == 0 {
				s.Isolated = append(s.Isolated, n)
			}
		}
		return nil
	})

	if cfg.SkipBetweenness {
		s.Betweenness = BetweennessSkip
	} else {
		eg.Go(func() error {
			sample := cfg.SampleSize
			if sample <= 0 {
				sample = RecommendSampleSize(g.NodeCount())
			}
			res, err := Betweenness(ctx, g.Undirected(), sample, cfg.Seed)
			if err != nil {
				return err
			}
			s.Betweenness = res.Mode
			s.Hubs = topHubs(res.Scores, items, cfg.HubLimit)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return s, nil
}

// topHubs ranks positive scores descending, ties by index.
func topHubs(scores map[int64]float64, items []model.Item, limit int) []Hub {
	hubs := []Hub{}
	for id, score := range scores {
		if score <= 0 {
			continue
		}
		h := Hub{Index: int(id), Score: score}
		if int(id) < len(items) {
			h.ID = items[id].ID
			h.Title = items[id].Title
		}
		hubs = append(hubs, h)
	}
	sort.Slice(hubs, func(i, j int) bool {
		if hubs[i].Score != hubs[j].Score {
			return hubs[i].Score > hubs[j].Score
		}
		return hubs[i].Index < hubs[j].Index
	})
	if len(hubs) > limit {
		hubs = hubs[:limit]
	}
	return hubs
}
