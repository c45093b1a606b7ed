package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/do-one-thing/internal/cli"
	"github.com/Veraticus/do-one-thing/internal/model"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change blocking preferences",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			settings, err := a.state.Settings(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderSettings(settings))
			return nil
		},
	})

	cmd.AddCommand(settingsSetCmd())
	return cmd
}

func settingsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings; unspecified flags are left as they are",
		Long: `Change settings. Lists replace the stored list entirely.

Examples:
  onething settings set --strictness strict
  onething settings set --whitelist github.com,*.python.org --blacklist youtube.com
  onething settings set --ai=false`,
		RunE: runSettingsSet,
	}

	cmd.Flags().String("strictness", "", "relaxed, standard or strict")
	cmd.Flags().StringSlice("whitelist", nil, "domains always allowed in new sessions")
	cmd.Flags().StringSlice("blacklist", nil, "domains always blocked in new sessions")
	cmd.Flags().Bool("ai", true, "use AI classification for unlisted pages")
	cmd.Flags().Bool("show-stats", true, "show statistics in the extension")
	cmd.Flags().Bool("notifications", true, "enable notifications")

	return cmd
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	var update model.SettingsUpdate

	if flags.Changed("strictness") {
		raw, _ := flags.GetString("strictness")
		s, err := model.ParseStrictness(raw)
		if err != nil {
			return err
		}
		update.Strictness = &s
	}
	if flags.Changed("whitelist") {
		update.Whitelist, _ = flags.GetStringSlice("whitelist")
		if update.Whitelist == nil {
			update.Whitelist = []string{}
		}
	}
	if flags.Changed("blacklist") {
		update.Blacklist, _ = flags.GetStringSlice("blacklist")
		if update.Blacklist == nil {
			update.Blacklist = []string{}
		}
	}
	if flags.Changed("ai") {
		v, _ := flags.GetBool("ai")
		update.AIEnabled = &v
	}
	if flags.Changed("show-stats") {
		v, _ := flags.GetBool("show-stats")
		update.ShowStats = &v
	}
	if flags.Changed("notifications") {
		v, _ := flags.GetBool("notifications")
		update.NotificationsEnabled = &v
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	settings, err := a.state.UpdateSettings(ctx, update)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Settings saved; list changes apply to the next session"))
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderSettings(settings))
	return nil
}
