package main

import (
	"os"

	"github.com/fwojciec/dataops/chi"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the agent API, the browser UI and metrics",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default $HTTP_ADDR or :8080)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(os.Stderr)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.HTTPAddr = serveAddr
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := chi.NewServer(chi.Config{
		Agent:    a.runner,
		Sessions: a.sessions,
		Project:  cfg.Project,
		Location: cfg.Location,
		Dataset:  cfg.Dataset,
		UITTL:    cfg.SessionTTL,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, cfg.HTTPAddr)
}
