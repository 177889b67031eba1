package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FF99"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
)

// Summary renders the terminal digest for headless runs.
func Summary(r *Report) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("FLEET LIFECYCLE AUDIT"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Window %s .. %s",
		r.Window.Start.Format("2006-01-02"), r.Window.End.Format("2006-01-02"))))
	b.WriteString("\n\n")

	terminated := len(r.Records) - r.StillRunning()
	fmt.Fprintf(&b, "  Instances:      %d\n", len(r.Records))
	fmt.Fprintf(&b, "  Terminated:     %d\n", terminated)
	fmt.Fprintf(&b, "  Still running:  %d\n", r.StillRunning())

	if len(r.Orphans) > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  Orphan terminations: %d", len(r.Orphans))))
		b.WriteString("\n")
		for _, k := range r.Orphans {
			b.WriteString(dimStyle.Render("    " + k.String()))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	for _, st := range r.Regions {
		line := fmt.Sprintf("  %-16s %s", st.Region, st.State)
		switch st.State {
		case RegionFailed:
			line = failStyle.Render(line + "  " + st.Error)
		case RegionPartial:
			line = warnStyle.Render(fmt.Sprintf("%s  (%d malformed skipped)", line, st.Malformed))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if !r.Complete() {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render("  Report is INCOMPLETE: one or more regions degraded."))
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("\nGenerated %s", r.GeneratedAt.Format(time.RFC3339))))
	return b.String()
}
