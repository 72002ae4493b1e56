package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/nodemap/pkg/analysis"
	"github.com/vanderheijden86/nodemap/pkg/config"
	"github.com/vanderheijden86/nodemap/pkg/drift"
	"github.com/vanderheijden86/nodemap/pkg/engine"
	"github.com/vanderheijden86/nodemap/pkg/loader"
)

const baselineFile = "baseline.json"

type statsOptions struct {
	json         bool
	saveBaseline string
	checkDrift   bool
	baseline     string
	sampleSize   int
}

// statsReport is the --json output.
type statsReport struct {
	Source string          `json:"source"`
	Hash   string          `json:"hash"`
	Stats  *analysis.Stats `json:"stats"`
	Drift  *drift.Result   `json:"drift,omitempty"`
}

func newStatsCmd(a *app) *cobra.Command {
	var opts statsOptions
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print layout and connection statistics",
		Long: `Stats reports node and edge counts, connected components, isolated
items, edge lengths and the items that bridge the rest of the map.

--save-baseline stores the current statistics; --check-drift compares
against them and exits 1 on critical drift and 2 on warnings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStats(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.json, "json", false, "print JSON")
	f.StringVar(&opts.saveBaseline, "save-baseline", "", "save the statistics as the baseline, with an optional description")
	f.Lookup("save-baseline").NoOptDefVal = " "
	f.BoolVar(&opts.checkDrift, "check-drift", false, "compare with the saved baseline")
	f.StringVar(&opts.baseline, "baseline", "", "baseline file (default .nodemap/baseline.json)")
	f.IntVar(&opts.sampleSize, "sample", 0, "betweenness sample size (0 chooses from the map size)")
	return cmd
}

func (a *app) runStats(cmd *cobra.Command, opts statsOptions) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	eng, _, err := a.newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	src, _, err := a.source(ctx)
	if err != nil {
		return err
	}
	items, err := a.load(ctx, src)
	if err != nil {
		return err
	}
	inst, err := eng.Mount(engine.NewLocalSurface("stats"), items)
	if err != nil {
		return err
	}
	defer inst.Dispose()

	acfg := analysis.DefaultConfig()
	acfg.SampleSize = opts.sampleSize
	stats, err := analysis.Compute(ctx, inst.Graph(), inst.Nodes(), inst.Items(), inst.NodeSize(), acfg)
	if err != nil {
		return err
	}

	report := statsReport{Source: src.String(), Hash: loader.Fingerprint(items), Stats: stats}
	baselinePath := opts.baseline
	if baselinePath == "" {
		baselinePath = filepath.Join(a.root, config.DirName, baselineFile)
	}

	if opts.saveBaseline != "" {
		desc := opts.saveBaseline
		if desc == " " {
			desc = ""
		}
		if err := drift.NewBaseline(report.Hash, stats, desc).Save(baselinePath); err != nil {
			return err
		}
		if !opts.json {
			fmt.Fprintf(w, "Baseline saved to %s\n", baselinePath)
		}
	}

	if opts.checkDrift {
		bl, err := drift.LoadBaseline(baselinePath)
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no baseline at %s: create one with 'nodemap stats --save-baseline'", baselinePath)
		}
		if err != nil {
			return err
		}
		dcfg, err := drift.LoadConfig(filepath.Join(a.root, config.DirName, drift.ConfigFile))
		if err != nil {
			return err
		}
		report.Drift = drift.Compare(bl, stats, dcfg)
	}

	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printStats(w, report)
		if report.Drift != nil {
			fmt.Fprint(w, "\n"+report.Drift.Summary())
		}
	}

	if report.Drift != nil {
		if code := report.Drift.ExitCode(); code != 0 {
			return &exitError{code: code}
		}
	}
	return nil
}

func printStats(w io.Writer, r statsReport) {
	s := r.Stats
	fmt.Fprintf(w, "Source:        %s\n", r.Source)
	fmt.Fprintf(w, "Items:         %d\n", s.Nodes)
	fmt.Fprintf(w, "Connections:   %d (%d mutual)\n", s.Edges, s.MutualEdges)
	fmt.Fprintf(w, "Components:    %d (largest %d)\n", s.Components, s.LargestComponent)
	fmt.Fprintf(w, "Isolated:      %d\n", len(s.Isolated))
	fmt.Fprintf(w, "Edge length:   mean %.1f, max %.1f\n", s.MeanEdgeLength, s.MaxEdgeLength)

	degrees := make([]int, 0, len(s.OutDegree))
	for d := range s.OutDegree {
		degrees = append(degrees, d)
	}
	sort.Ints(degrees)
	fmt.Fprint(w, "Out-degree:   ")
	for _, d := range degrees {
		fmt.Fprintf(w, " %d→%d", d, s.OutDegree[d])
	}
	fmt.Fprintln(w)

	if len(s.Hubs) > 0 {
		fmt.Fprintf(w, "Hubs (%s betweenness):\n", s.Betweenness)
		for _, h := range s.Hubs {
			fmt.Fprintf(w, "  %-12s %-24s %.2f\n", h.ID, h.Title, h.Score)
		}
	}
}
