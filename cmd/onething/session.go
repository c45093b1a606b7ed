package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/do-one-thing/internal/cli"
	"github.com/Veraticus/do-one-thing/internal/common"
	"github.com/Veraticus/do-one-thing/internal/pattern"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start, end and inspect focus sessions",
	}

	cmd.AddCommand(sessionStartCmd())
	cmd.AddCommand(sessionEndCmd())
	cmd.AddCommand(sessionStatusCmd())
	cmd.AddCommand(sessionAllowCmd())
	cmd.AddCommand(sessionHistoryCmd())

	return cmd
}

func sessionStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [goal...]",
		Short: "Start a focus session",
		Long: `Start a focus session for the given goal. Without arguments the goal is
read from the terminal.

Example:
  onething session start "Research Python decorators for my blog post"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			goal := strings.TrimSpace(strings.Join(args, " "))
			if goal == "" {
				answer, err := cli.NewLineReader(cmd.InOrStdin(), out).Ask(ctx, "What do you want to focus on?")
				if err != nil {
					return err
				}
				goal = answer
			}

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			session, err := a.sessions.Start(ctx, goal)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, cli.FormatSuccess("Focus session started"))
			fmt.Fprintln(out, cli.RenderSession(session, time.Now()))
			return nil
		},
	}
}

func sessionEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end",
		Short: "End the current focus session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			session, err := a.sessions.End(ctx)
			if errors.Is(err, common.ErrNoActiveSession) {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No focus session is running."))
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"Focused for %s on %q, %d pages blocked",
				cli.FormatDuration(session.Duration(time.Now())), session.Intent, session.BlockedCount)))
			return nil
		},
	}
}

func sessionStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current focus session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			session, err := a.sessions.Current(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderSession(session, time.Now()))
			if a.aiErr != nil && session != nil && session.Active {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("AI classification is unavailable: "+userMessage(a.aiErr)))
			}
			return nil
		},
	}
}

func sessionAllowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "allow <url>",
		Short: "Allow a page's domain for the rest of the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if _, err := a.sessions.AllowDomain(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Allowed "+pattern.ExtractDomain(args[0])+" for this session"))
			return nil
		},
	}
}

func sessionHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished focus sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			sessions, err := a.sessions.History(ctx)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No finished sessions yet."))
				return nil
			}
			if limit > 0 && len(sessions) > limit {
				sessions = sessions[:limit]
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle(fmt.Sprintf("Last %d sessions", len(sessions))))

			for _, s := range sessions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %4d blocked  %s\n",
					cli.SubtleStyle.Render(s.StartTime.Local().Format("2006-01-02 15:04")),
					cli.FormatDuration(s.Duration(s.StartTime)),
					s.BlockedCount,
					s.Intent)
			}
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 10, "number of sessions to show (0 = all)")
	return cmd
}

func userMessage(err error) string {
	var userErr *common.UserError
	if errors.As(err, &userErr) {
		return userErr.UserMessage
	}
	return err.Error()
}
