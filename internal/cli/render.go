package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/do-one-thing/internal/model"
)

// FormatVerdict renders one verdict as a single line.
func FormatVerdict(v model.Verdict) string {
	status := AllowStyle.Render(SuccessIcon + " allow")
	if v.Blocked() {
		status = BlockStyle.Render(BlockIcon + " block")
	}

	detail := fmt.Sprintf("%s, %d%%", v.Source, v.Confidence)
	line := fmt.Sprintf("%s  %s  %s", status, BoldStyle.Render(v.URL), SubtleStyle.Render("("+detail+")"))
	if v.Reason != "" {
		line += "\n    " + SubtleStyle.Render(v.Reason)
	}
	return line
}

// RenderSession renders a focus session, or a hint when there is none.
func RenderSession(s *model.FocusSession, now time.Time) string {
	if s == nil || !s.Active {
		return FormatInfo("No active focus session. Start one with: onething session start \"<goal>\"")
	}

	rows := []string{
		row("Intent", s.Intent),
		row("Started", s.StartTime.Local().Format(time.Kitchen)),
		row("Elapsed", FormatDuration(s.Duration(now))),
		row("Strictness", string(s.Rules.Strictness)),
		row("Blocked", fmt.Sprintf("%d", s.BlockedCount)),
	}
	if len(s.Rules.Keywords) > 0 {
		rows = append(rows, row("Keywords", strings.Join(s.Rules.Keywords, ", ")))
	}
	if len(s.Rules.AllowedDomains) > 0 {
		rows = append(rows, row("Allowed", strings.Join(s.Rules.AllowedDomains, ", ")))
	}
	if len(s.Rules.BlockedDomains) > 0 {
		rows = append(rows, row("Denied", strings.Join(s.Rules.BlockedDomains, ", ")))
	}

	return RenderBox(FocusIcon+" Focus session", lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// RenderStats renders the aggregate statistics with the most blocked domains.
func RenderStats(stats model.Stats, top int) string {
	rows := []string{
		row("Sessions", fmt.Sprintf("%d", stats.SessionsCompleted)),
		row("Focus time", FormatDuration(stats.TotalFocusTime)),
		row("Pages blocked", fmt.Sprintf("%d", stats.TotalBlocked)),
	}

	domains := stats.TopBlocked(top)
	if len(domains) > 0 {
		rows = append(rows, "", BoldStyle.Render("Most blocked"))
		for _, d := range domains {
			rows = append(rows, fmt.Sprintf("  %-30s %s", d.Domain, BlockStyle.Render(fmt.Sprintf("%d", d.Count))))
		}
	}

	return RenderBox(ChartIcon+" Focus statistics", lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// RenderSettings renders the user's settings.
func RenderSettings(s model.Settings) string {
	rows := []string{
		row("Strictness", string(s.Strictness)),
		row("Whitelist", listOrNone(s.Whitelist)),
		row("Blacklist", listOrNone(s.Blacklist)),
		row("AI enabled", fmt.Sprintf("%t", s.AIEnabled)),
		row("Show stats", fmt.Sprintf("%t", s.ShowStats)),
		row("Notifications", fmt.Sprintf("%t", s.NotificationsEnabled)),
	}
	return RenderBox("Settings", lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// FormatDuration renders d as "1h 5m", "5m 3s" or "3s".
func FormatDuration(d time.Duration) string {
	seconds := int(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func row(label, value string) string {
	return LabelStyle.Render(label) + value
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return SubtleStyle.Render("(none)")
	}
	return strings.Join(items, ", ")
}
