package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/do-one-thing/internal/cli"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Every other command migrates on startup; this command is useful to prepare a
database ahead of time or to check its schema version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			status, _ := cmd.Flags().GetBool("status")

			slog.Info("Starting database migration", "status_only", status)

			store, err := openStore(ctx, !status)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			v, err := store.SchemaVersion(ctx)
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}

			if status {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("Database schema version %d", v)))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Database migrations completed (schema version %d)", v)))
			return nil
		},
	}

	cmd.Flags().Bool("status", false, "only show the current schema version")
	return cmd
}
