package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/nodemap/pkg/server"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a live-reloading HTML preview of the map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.runServe(cmd)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8080)")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, pal, err := a.newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	src, _, err := a.source(ctx)
	if err != nil {
		return err
	}
	watch := ""
	if a.cfg.Watch {
		watch = server.WatchPath(src)
	}
	srv := server.New(server.Config{
		Addr:           a.cfg.Server.Addr,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Gzip:           a.cfg.Server.Gzip,
		Watch:          watch,
	}, eng, src, pal)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s\n", src, a.cfg.Server.Addr)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
