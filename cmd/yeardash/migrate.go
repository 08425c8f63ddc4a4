package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"yeardash/internal/backend"
	"yeardash/internal/cli"
	"yeardash/internal/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the schema migrations of the configured database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := cli.SetupLogger()
		cfg := cli.LoadAndValidateConfig(logger)

		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return err
		}
		if bcfg.Type == backend.MemoryBackend {
			return fmt.Errorf("backend %q has no schema to migrate", bcfg.Type)
		}
		// Migrations only; change fan-out is not needed.
		bcfg.AMQPURL = ""

		result, err := backend.NewFactory(logger, nil).CreateBackend(cmd.Context(), bcfg)
		if err != nil {
			return err
		}
		defer result.Cleanup()

		if err := result.Backend.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("ping after migrate: %w", err)
		}
		logger.Info("Migrations applied", "backend", bcfg.Type.String(), log.FieldOperation, "migrate")
		return nil
	},
}
