package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/do-one-thing/internal/cli"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear cached verdicts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			n, err := a.cache.Len(ctx)
			if err != nil {
				return err
			}
			cfg := a.cache.Config()
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf(
				"%d cached verdicts (max %d, ttl %s)", n, cfg.MaxEntries, cfg.TTL)))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget every cached verdict",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.cache.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Verdict cache cleared"))
			return nil
		},
	})

	return cmd
}
