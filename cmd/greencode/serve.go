package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/greg-hellings/greencode/pkg/dashboard"
	"github.com/greg-hellings/greencode/pkg/server"
)

func newDashboardCmd() *cobra.Command {
	var exportDir string
	c := &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive terminal dashboard",
		Long: strings.TrimSpace(`
Open the full-screen dashboard: an editor with a language selector, the
report view, the history sidebar and the About and Docs pages. The session
is saved after every analysis and history change.`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			timeout, err := a.cfg.TimeoutDuration()
			if err != nil {
				return err
			}
			theme := a.cfg.Display.Theme
			if !a.cfg.ColorsEnabled() {
				theme = "notty"
			}

			err = dashboard.Run(ctx, a.sess, dashboard.Options{
				Theme:     theme,
				Timeout:   timeout,
				ExportDir: exportDir,
				OnChange:  a.saveQuietly,
			})
			if err != nil {
				return err
			}
			// Editor contents and language changes are saved on exit.
			return a.save(context.Background())
		},
	}
	c.Flags().StringVar(&exportDir, "export-dir", ".", "Directory that receives exported reports")
	return c
}

func newServeCmd() *cobra.Command {
	var addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session over a JSON HTTP API",
		Long: strings.TrimSpace(`
Serve one session over HTTP for a web front-end. The session is saved after
every analysis and history change. Stop with Ctrl+C.

Examples:
  greencode serve
  greencode serve --addr 127.0.0.1:9000 --verbose
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			timeout, err := a.cfg.TimeoutDuration()
			if err != nil {
				return err
			}

			srv := server.New(server.Deps{
				Session:   a.sess,
				Log:       slog.Default(),
				AccessLog: cmd.ErrOrStderr(),
				Timeout:   timeout,
				OnChange:  a.saveQuietly,
			})
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				return err
			}
			return a.save(context.Background())
		},
	}
	c.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	return c
}
