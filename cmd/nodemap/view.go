package main

import (
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vanderheijden86/nodemap/pkg/server"
	"github.com/vanderheijden86/nodemap/pkg/ui"
)

// isTerminal reports whether stdout is a TTY; swapped in tests.
var isTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

func newViewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the map in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal() {
				return errors.New("the map view needs a terminal; use 'nodemap export' or 'nodemap serve' instead")
			}
			return a.runView(cmd)
		},
	}
}

func (a *app) runView(cmd *cobra.Command) error {
	ctx := cmd.Context()
	eng, _, err := a.newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	src, _, err := a.source(ctx)
	if err != nil {
		return err
	}
	// A failed first load still opens the view; the worker retries on
	// change and the status line shows the reason.
	items, loadErr := a.load(ctx, src)

	active := server.WatchPath(src)
	watch := ""
	if a.cfg.Watch {
		watch = active
	}
	worker, err := ui.NewBackgroundWorker(ui.WorkerConfig{
		Source:    src,
		WatchPath: watch,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}

	var sources []string
	if !a.workspace {
		sources = a.sources(active)
	}
	m, err := ui.NewModel(ui.Config{
		Engine:       eng,
		Items:        items,
		LoadErr:      loadErr,
		Worker:       worker,
		Sources:      sources,
		ActiveSource: active,
	})
	if err != nil {
		worker.Stop()
		return err
	}
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))
	m.Attach(p)
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
