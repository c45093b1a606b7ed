package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/do-one-thing/internal/cli"
)

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show focus statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			reset, _ := cmd.Flags().GetBool("reset")
			top, _ := cmd.Flags().GetInt("top")

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if reset {
				if err := a.state.ResetStats(ctx); err != nil {
					return fmt.Errorf("failed to reset stats: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Statistics reset"))
				return nil
			}

			stats, err := a.state.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderStats(stats, top))
			return nil
		},
	}

	cmd.Flags().Bool("reset", false, "reset all statistics")
	cmd.Flags().Int("top", 10, "number of most-blocked domains to list")
	return cmd
}
