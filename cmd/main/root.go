package main

import (
	"fmt"

	"storefront/catalog/internal/config"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app carries state shared by the subcommands.
type app struct {
	configDir string
	cfg       *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "storefront-catalog",
		Short: "Category membership reconciliation for the storefront catalog",
		Long: `storefront-catalog answers which products belong to a category when the
storefront API only offers a paginated product listing and a per-category list
of product ids.

It can serve the answer over HTTP, print it for one category, or audit every
category in the background and store a scan report per category.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			cfg, err := config.Load(a.configDir)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.cfg = cfg

			return setupLogging(cfg.Log)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configDir, "config-dir", ".", "directory containing config.yaml")

	cmd.AddCommand(
		newServeCmd(a),
		newCategoryCmd(a),
		newAuditCmd(a),
	)

	return cmd
}

func setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
