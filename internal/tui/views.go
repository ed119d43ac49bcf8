package tui

import (
	"fmt"
	"strings"
	"time"
)

// View renders the current screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("pipedash — pipeline builds"))
	b.WriteString("\n")

	if m.errorMessage != "" {
		b.WriteString(errorStyle.Render("error: " + m.errorMessage))
		b.WriteString("\n")
	}

	switch m.viewMode {
	case ViewModeDetail:
		b.WriteString(m.detailView())
	default:
		b.WriteString(m.listView())
	}

	b.WriteString(m.statusBar())
	return b.String()
}

// listView renders the build table.
func (m Model) listView() string {
	if len(m.builds) == 0 {
		return buildListStyle.Render("no builds yet — start one with 'pipedash start'")
	}

	var rows []string
	rows = append(rows, fmt.Sprintf("%-8s  %-24s  %-32s  %-10s  %s",
		"STATUS", "JOB", "LOGFILE", "DURATION", "STARTED"))

	visible := m.builds
	maxRows := m.height - 10
	if maxRows > 0 && len(visible) > maxRows {
		visible = visible[:maxRows]
	}

	for i, build := range visible {
		line := fmt.Sprintf("%-8s  %-24s  %-32s  %-10s  %s",
			string(build.Status),
			truncate(build.JobID, 24),
			truncate(build.LogFile, 32),
			formatDuration(build.DurationSec),
			formatStarted(build.StartedAt),
		)

		badge := statusStyle(string(build.Status)).Render(line[:8])
		line = badge + line[8:]
		if i == m.selected {
			rows = append(rows, buildItemSelectedStyle.Render("> "+line))
		} else {
			rows = append(rows, buildItemStyle.Render("  "+line))
		}
	}

	return buildListStyle.Render(strings.Join(rows, "\n"))
}

// detailView renders the selected build plus its log tail.
func (m Model) detailView() string {
	if m.selected >= len(m.builds) {
		return detailStyle.Render("build no longer present")
	}
	build := m.builds[m.selected]

	var b strings.Builder
	fmt.Fprintf(&b, "job:      %s\n", build.JobID)
	fmt.Fprintf(&b, "logfile:  %s\n", build.LogFile)
	fmt.Fprintf(&b, "status:   %s\n", statusStyle(string(build.Status)).Render(string(build.Status)))
	fmt.Fprintf(&b, "started:  %s\n", formatStarted(build.StartedAt))
	fmt.Fprintf(&b, "duration: %s\n", formatDuration(build.DurationSec))
	fmt.Fprintf(&b, "size:     %d bytes\n", build.SizeBytes)
	if build.PID != 0 {
		fmt.Fprintf(&b, "pid:      %d\n", build.PID)
	}
	if build.CancelledAt != nil {
		fmt.Fprintf(&b, "cancel:   requested %s\n", build.CancelledAt.Format(time.RFC3339))
	}
	if len(build.Params) > 0 {
		fmt.Fprintf(&b, "params:   %v\n", build.Params)
	}
	b.WriteString("\n")
	b.WriteString(m.detailTail)

	return detailStyle.Render(b.String())
}

// statusBar renders the bottom summary/help line.
func (m Model) statusBar() string {
	help := "enter detail · esc back · j/k move · r refresh · q quit"
	if m.viewMode == ViewModeDetail {
		help = "esc back · r refresh · q quit"
	}
	return statusBarStyle.Render(fmt.Sprintf(
		"%d builds · %d running · %d failed · updated %s   %s",
		m.totalBuilds, m.runningBuilds, m.failedBuilds,
		m.lastUpdate.Format("15:04:05"), help,
	))
}

func formatStarted(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatDuration(sec *float64) string {
	if sec == nil {
		return "-"
	}
	d := time.Duration(*sec * float64(time.Second))
	return d.Truncate(time.Second).String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
