package main

import (
	"storefront/catalog/internal/container"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve category products over HTTP",
		Example: `  # Start on the configured port
  storefront-catalog serve

  # Override the port
  storefront-catalog serve --port 9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				a.cfg.Server.Port = port
			}

			log.Info("Starting storefront catalog server...")
			c, err := container.NewServer(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			return c.Serve(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default from config)")

	return cmd
}
