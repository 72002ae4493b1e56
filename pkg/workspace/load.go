package workspace

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/nodemap/pkg/loader"
	"github.com/vanderheijden86/nodemap/pkg/model"
)

// SourceSummary reports the outcome of loading one source.
type SourceSummary struct {
	Name     string
	Location string
	Items    int
	Err      error
}

// Summary describes a merged load.
type Summary struct {
	Sources []SourceSummary
	Total   int
}

// Failed returns the sources that could not be loaded.
func (s Summary) Failed() []SourceSummary {
	var out []SourceSummary
	for _, src := range s.Sources {
		if src.Err != nil {
			out = append(out, src)
		}
	}
	return out
}

// LoadAll loads every enabled source concurrently and merges the items in
// source order, qualifying ids with each source's prefix. A failing source
// is recorded in the summary and skipped. When every source fails the
// error is a loader.DataUnavailableError.
func LoadAll(ctx context.Context, c *Config, root string, logger *log.Logger) ([]model.Item, Summary, error) {
	if logger == nil {
		logger = log.Default()
	}

	var enabled []SourceConfig
	for _, s := range c.Sources {
		if s.Active() {
			enabled = append(enabled, s)
		}
	}

	results := make([][]model.Item, len(enabled))
	summary := Summary{Sources: make([]SourceSummary, len(enabled))}

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range enabled {
		loc := src.Location(root)
		summary.Sources[i] = SourceSummary{Name: src.Title(), Location: loc}
		g.Go(func() error {
			items, err := loader.Load(gctx, loader.Open(loc), logger)
			if err != nil {
				logger.Printf("workspace: source %s: %v", src.Title(), err)
				summary.Sources[i].Err = err
				return nil
			}
			prefix := src.IDPrefix()
			for j := range items {
				items[j].ID = QualifyID(items[j].ID, prefix)
			}
			results[i] = items
			summary.Sources[i].Items = len(items)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, summary, err
	}
	if err := ctx.Err(); err != nil {
		return nil, summary, err
	}

	var merged []model.Item
	for _, items := range results {
		merged = append(merged, items...)
	}
	summary.Total = len(merged)

	if failed := summary.Failed(); len(enabled) > 0 && len(failed) == len(enabled) {
		names := make([]string, len(failed))
		for i, f := range failed {
			names[i] = f.Name
		}
		return nil, summary, &loader.DataUnavailableError{
			Source: "workspace",
			Cause:  fmt.Errorf("no source could be loaded: %s", strings.Join(names, ", ")),
		}
	}
	return merged, summary, nil
}
