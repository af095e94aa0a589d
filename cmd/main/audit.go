package main

import (
	"storefront/catalog/internal/container"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newAuditCmd(a *app) *cobra.Command {
	var (
		workers     int
		workersOnly bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Reconcile every category and store a scan report for each",
		Long: `Lists every category of the storefront, queues one audit task per category
on Redis streams, and runs workers that reconcile each category and store the
outcome in Postgres. Failed audits are retried a limited number of times.

Several processes can run "audit --workers-only" to share the queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers > 0 {
				a.cfg.Audit.MaxWorkers = workers
			}

			log.Info("Starting category audit...")
			c, err := container.NewAudit(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			return c.RunAudit(cmd.Context(), !workersOnly)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "number of audit workers (default from config)")
	cmd.Flags().BoolVar(&workersOnly, "workers-only", false, "only consume queued tasks, do not list categories")

	return cmd
}
