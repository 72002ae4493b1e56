// Command nodemap shows an item collection as a pannable, zoomable node map
// in the terminal, exports snapshots of it and serves a live preview.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/nodemap/pkg/config"
	"github.com/vanderheijden86/nodemap/pkg/engine"
	"github.com/vanderheijden86/nodemap/pkg/i18n"
	"github.com/vanderheijden86/nodemap/pkg/layout"
	"github.com/vanderheijden86/nodemap/pkg/loader"
	"github.com/vanderheijden86/nodemap/pkg/model"
	"github.com/vanderheijden86/nodemap/pkg/theme"
	"github.com/vanderheijden86/nodemap/pkg/workspace"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// exitError ends the process with code without printing anything more.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// app carries the persistent flags and what PersistentPreRunE derives
// from them.
type app struct {
	configPath string
	items      string
	seed       uint64
	seedSet    bool
	verbose    bool
	logFile    string
	workspace  bool

	root      string
	cfg       *config.Config
	logger    *log.Logger
	logCloser io.Closer

	// darkBackground resolves the "auto" theme; swapped in tests.
	darkBackground func() bool
}

func newRootCmd() *cobra.Command {
	a := &app{darkBackground: lipgloss.HasDarkBackground}

	root := &cobra.Command{
		Use:   "nodemap",
		Short: "Explore an item collection as an interactive node map",
		Long: `nodemap lays items out on a jittered spiral, links each to its nearest
neighbours and lets you pan, zoom and open items in the terminal.
It can also export the map or serve a live-reloading preview.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.seedSet = cmd.Flags().Changed("seed")
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default .nodemap/config.yaml in the project)")
	pf.StringVar(&a.items, "items", "", "item file, SQLite database or http(s) URL")
	pf.Uint64Var(&a.seed, "seed", 0, "jitter seed for a reproducible layout")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr")
	pf.StringVar(&a.logFile, "log-file", "", "append logs to this file")
	pf.BoolVar(&a.workspace, "workspace", false, "show every source of .nodemap/workspace.yaml as one map")

	view := newViewCmd(a)
	root.RunE = view.RunE
	root.AddCommand(
		view,
		newExportCmd(a),
		newServeCmd(a),
		newStatsCmd(a),
		newInitCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup finds the project, loads and validates the config and opens the
// log destination.
func (a *app) setup(cmd *cobra.Command) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	a.root = wd
	if root, ok := config.FindProjectRoot(wd); ok {
		a.root = root
	}

	path := a.configPath
	if path == "" {
		path = config.Path(a.root)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	a.cfg = cfg

	var sinks []io.Writer
	if a.verbose {
		sinks = append(sinks, cmd.ErrOrStderr())
	}
	logFile := a.logFile
	if logFile == "" && cfg.LogFile != "" {
		logFile = cfg.LogFile
		if !filepath.IsAbs(logFile) {
			logFile = filepath.Join(a.root, logFile)
		}
	}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return fmt.Errorf("creating log dir: %w", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		a.logCloser = f
		sinks = append(sinks, f)
	}
	switch len(sinks) {
	case 0:
		a.logger = log.New(io.Discard, "", 0)
	default:
		a.logger = log.New(io.MultiWriter(sinks...), "", log.LstdFlags)
	}
	return nil
}

func (a *app) teardown() {
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

// palette resolves the configured theme, asking the terminal only for
// "auto".
func (a *app) palette() (theme.Palette, error) {
	dark := true
	if strings.EqualFold(a.cfg.Theme, theme.NameAuto) {
		dark = a.darkBackground()
	}
	return theme.Resolve(a.cfg.Theme, dark)
}

// newEngine builds the shared services and an engine from the config.
func (a *app) newEngine() (*engine.Engine, theme.Palette, error) {
	tr := i18n.New(a.logger)
	if a.cfg.LocalesDir != "" {
		if err := tr.LoadDir(a.cfg.LocalesDir); err != nil {
			return nil, theme.Palette{}, err
		}
	}
	if err := tr.SetLanguage(a.cfg.Language); err != nil {
		return nil, theme.Palette{}, err
	}

	pal, err := a.palette()
	if err != nil {
		return nil, theme.Palette{}, err
	}

	seed := a.cfg.Layout.Seed
	if a.seedSet {
		seed = &a.seed
	}

	eng, err := engine.New(engine.Services{
		Translator: tr,
		Theme:      theme.NewManager(strings.ToLower(pal.Name)),
		Jitter:     layout.NewJitter(a.cfg.Layout.Jitter, seed),
		Logger:     a.logger,
	}, engine.Options{
		Layout:   a.cfg.Layout.Config,
		Graph:    a.cfg.Graph,
		Viewport: a.cfg.Viewport,
		Strict:   a.cfg.Strict,
	})
	if err != nil {
		return nil, theme.Palette{}, err
	}
	return eng, pal, nil
}

// location picks the item source: --items, then the config, then the
// first discovered item file.
func (a *app) location() (string, error) {
	if a.items != "" {
		return a.items, nil
	}
	if loc := a.cfg.ResolveItems(a.root); loc != "" {
		return loc, nil
	}
	if found := a.discover(); len(found) > 0 {
		a.logger.Printf("cli: using discovered item file %s", found[0])
		return found[0], nil
	}
	return "", errors.New("no item file found: pass --items or run 'nodemap init'")
}

func (a *app) discover() []string {
	return config.DiscoverItemFiles(a.root, a.cfg.Discovery.Patterns, a.cfg.Discovery.MaxDepth)
}

// findWorkspace returns the workspace config and its root, or nil when
// there is none.
func (a *app) findWorkspace() (*workspace.Config, string, error) {
	path, err := workspace.Find(a.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	ws, err := workspace.Load(path)
	if err != nil {
		return nil, "", err
	}
	return ws, workspace.Root(path), nil
}

// source returns the item source and a display name. With --workspace the
// merged collection is loaded up front and served from memory.
func (a *app) source(ctx context.Context) (loader.Source, string, error) {
	if !a.workspace {
		loc, err := a.location()
		if err != nil {
			return nil, "", err
		}
		return loader.Open(loc), sourceName(loc), nil
	}

	ws, root, err := a.findWorkspace()
	if err != nil {
		return nil, "", err
	}
	if ws == nil {
		return nil, "", fmt.Errorf("--workspace: no %s found above %s", filepath.Join(config.DirName, workspace.FileName), a.root)
	}
	items, summary, err := workspace.LoadAll(ctx, ws, root, a.logger)
	if err != nil {
		return nil, "", err
	}
	for _, f := range summary.Failed() {
		a.logger.Printf("cli: workspace source %s skipped: %v", f.Name, f.Err)
	}
	name := ws.Name
	if name == "" {
		name = filepath.Base(root)
	}
	return loader.StaticSource(items), name, nil
}

// sources lists the collections offered by the terminal picker: the
// workspace sources when a workspace exists, discovered files otherwise.
func (a *app) sources(active string) []string {
	var out []string
	if ws, root, err := a.findWorkspace(); err == nil && ws != nil {
		out = ws.Locations(root)
	} else {
		out = a.discover()
	}
	if active == "" {
		return out
	}
	for _, s := range out {
		if filepath.Clean(s) == filepath.Clean(active) {
			return out
		}
	}
	return append([]string{active}, out...)
}

func (a *app) load(ctx context.Context, src loader.Source) ([]model.Item, error) {
	return loader.Load(ctx, src, a.logger)
}

func sourceName(loc string) string {
	base := filepath.Base(loc)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "gallery-data" {
		name = filepath.Base(filepath.Dir(loc))
	}
	return name
}
