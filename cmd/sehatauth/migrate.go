package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sehatbridge/sehatauth/internal/telemetry"
)

func migrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and indexes for the configured stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.load()
			if err != nil {
				return err
			}
			logger := telemetry.NewLogger(os.Stdout, settings.LogLevel, settings.IsDev())

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			b, err := openBackends(ctx, settings, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Msg("migrations completed")
			return nil
		},
	}
}
