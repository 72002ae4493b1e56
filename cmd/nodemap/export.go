package main

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/nodemap/pkg/analysis"
	"github.com/vanderheijden86/nodemap/pkg/engine"
	"github.com/vanderheijden86/nodemap/pkg/export"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		formats []string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the map as SVG, PNG, HTML, Markdown, JSON or SQLite",
		Long: `Export renders the initial view of the map. Several formats are written
concurrently; with more than one format --out is the base name and each
file gets its format's extension.`,
		Example: `  nodemap export --format svg --out gallery.svg
  nodemap export --format html,png,md --out site/gallery`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseFormats(formats)
			if err != nil {
				return err
			}
			return a.runExport(cmd, parsed, out)
		},
	}
	cmd.Flags().StringSliceVarP(&formats, "format", "f", []string{string(export.FormatSVG)}, "output formats (svg, png, html, md, json, db)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or base name (default: generated from the collection name)")
	return cmd
}

func parseFormats(names []string) ([]export.Format, error) {
	seen := make(map[export.Format]bool)
	var out []export.Format
	for _, n := range names {
		f, err := export.ParseFormat(n)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no export format given")
	}
	return out, nil
}

func (a *app) runExport(cmd *cobra.Command, formats []export.Format, out string) error {
	ctx := cmd.Context()
	eng, pal, err := a.newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	src, name, err := a.source(ctx)
	if err != nil {
		return err
	}
	items, err := a.load(ctx, src)
	if err != nil {
		return err
	}
	inst, err := eng.Mount(engine.NewLocalSurface("export"), items)
	if err != nil {
		return err
	}
	defer inst.Dispose()

	doc := export.NewDocument(inst, eng.Services().Translator, pal)
	doc.Stats, err = analysis.Compute(ctx, inst.Graph(), inst.Nodes(), inst.Items(), inst.NodeSize(), analysis.DefaultConfig())
	if err != nil {
		return err
	}

	if out == "" {
		out = export.GenerateFilename(name)
	}
	var paths []string
	ext := filepath.Ext(out)
	if len(formats) == 1 && ext != "" {
		if err := export.WriteFile(ctx, out, formats[0], doc); err != nil {
			return err
		}
		paths = []string{out}
	} else {
		base := out
		if f, err := export.ParseFormat(ext); ext != "" && err == nil && slices.Contains(formats, f) {
			base = strings.TrimSuffix(out, ext)
		}
		if paths, err = export.WriteFiles(ctx, base, formats, doc); err != nil {
			return err
		}
	}
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}
