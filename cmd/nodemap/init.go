package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/nodemap/pkg/config"
	"github.com/vanderheijden86/nodemap/pkg/i18n"
	"github.com/vanderheijden86/nodemap/pkg/theme"
	"github.com/vanderheijden86/nodemap/pkg/workspace"
)

const logFileName = "nodemap.log"

type initOptions struct {
	yes              bool
	force            bool
	exampleWorkspace bool
}

// runWizard asks for the settings init writes. Swapped in tests.
var runWizard = func(cfg *config.Config, candidates []string) error {
	langs := make([]huh.Option[string], len(i18n.Languages))
	for i, l := range i18n.Languages {
		langs[i] = huh.NewOption(fmt.Sprintf("%s %s", l.Flag, l.NativeName), l.Code)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Item file").
				Description("JSON or YAML item file, SQLite database or http(s) URL").
				Suggestions(candidates).
				Value(&cfg.Items).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("an item source is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Theme").
				Options(huh.NewOptions(theme.NameDark, theme.NameLight, theme.NameAuto)...).
				Value(&cfg.Theme),
			huh.NewSelect[string]().
				Title("Language").
				Options(langs...).
				Value(&cfg.Language),
			huh.NewConfirm().
				Title("Watch the item file for changes?").
				Value(&cfg.Watch),
		),
	).WithAccessible(os.Getenv("ACCESSIBLE") != "")
	return form.Run()
}

func newInitCmd(a *app) *cobra.Command {
	var opts initOptions
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .nodemap/config.yaml with an interactive wizard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "accept the defaults without prompting")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing config")
	cmd.Flags().BoolVar(&opts.exampleWorkspace, "example-workspace", false, "also write an example .nodemap/workspace.yaml")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, opts initOptions) error {
	w := cmd.OutOrStdout()
	path := a.configPath
	if path == "" {
		path = config.Path(a.root)
	}
	if _, err := os.Stat(path); err == nil && !opts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	cfg.LogFile = filepath.ToSlash(filepath.Join(config.DirName, logFileName))
	candidates := a.discover()
	for i, c := range candidates {
		candidates[i] = a.relative(c)
	}
	switch {
	case a.items != "":
		cfg.Items = a.relative(a.items)
	case len(candidates) > 0:
		cfg.Items = candidates[0]
	}

	if !opts.yes {
		if err := runWizard(cfg, candidates); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Fprintln(w, "Cancelled.")
				return nil
			}
			return err
		}
	}
	if cfg.Items != "" && !strings.Contains(cfg.Items, "://") {
		if _, err := os.Stat(cfg.ResolveItems(a.root)); err != nil {
			fmt.Fprintf(w, "Warning: %s does not exist yet\n", cfg.Items)
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s\n", path)

	if err := config.EnsureIgnored(a.root, cfg.LogFile, cfg.LogFile); err != nil {
		a.logger.Printf("cli: updating .gitignore: %v", err)
	}

	if opts.exampleWorkspace {
		wsPath := filepath.Join(filepath.Dir(path), workspace.FileName)
		if _, err := os.Stat(wsPath); err == nil && !opts.force {
			fmt.Fprintf(w, "Kept existing %s\n", wsPath)
			return nil
		}
		ws := workspace.ExampleConfig()
		if err := ws.Save(wsPath); err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %s\n", wsPath)
	}
	return nil
}

// relative shortens p to a path under the project root when possible.
func (a *app) relative(p string) string {
	if strings.Contains(p, "://") {
		return p
	}
	if !filepath.IsAbs(p) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return filepath.ToSlash(p)
		}
		p = abs
	}
	if rel, err := filepath.Rel(a.root, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return p
}
