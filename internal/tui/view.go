package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rastow/panerun/internal/panes"
	"github.com/rastow/panerun/internal/track"
)

var (
	// Adaptive colors for light/dark terminal backgrounds
	accentColor = lipgloss.AdaptiveColor{Light: "#D6249F", Dark: "#FF79C6"}
	greenColor  = lipgloss.AdaptiveColor{Light: "#116620", Dark: "#50FA7B"}
	yellowColor = lipgloss.AdaptiveColor{Light: "#7D5A00", Dark: "#F1FA8C"}
	redColor    = lipgloss.AdaptiveColor{Light: "#B31D28", Dark: "#FF5555"}
	dimColor    = lipgloss.AdaptiveColor{Light: "#777777", Dark: "#6272A4"}
	hlBgColor   = lipgloss.AdaptiveColor{Light: "#E8E8E8", Dark: "#333333"}
	cyanColor   = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#8BE9FD"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			PaddingLeft(1)

	headerStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			PaddingLeft(1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	selectedRowStyle = lipgloss.NewStyle().
				Background(hlBgColor)

	statusRunning = lipgloss.NewStyle().
			Foreground(greenColor)

	statusPending = lipgloss.NewStyle().
			Foreground(yellowColor)

	statusCompleted = lipgloss.NewStyle().
			Foreground(cyanColor)

	statusFailed = lipgloss.NewStyle().
			Foreground(redColor).
			Bold(true)

	statusNeutral = lipgloss.NewStyle().
			Foreground(dimColor)

	commandStyle = lipgloss.NewStyle().
			Foreground(cyanColor)

	ageStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	confirmLabelStyle = lipgloss.NewStyle().
				Foreground(redColor).
				Bold(true).
				PaddingLeft(1)

	confirmKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}).
			Background(redColor).
			Bold(true).
			Padding(0, 1)

	confirmDimStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			PaddingLeft(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			PaddingLeft(1)

	inputLabelStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	previewBorderStyle = lipgloss.NewStyle().
				Foreground(dimColor)

	previewContentStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#444444", Dark: "#BBBBBB"})
)

// pad right-pads s to width with spaces (based on visual width, not byte count).
func pad(s string, width int) string {
	visual := lipgloss.Width(s)
	if visual >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visual)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	// Title
	b.WriteString(titleStyle.Render("panerun"))
	b.WriteString("\n\n")

	if len(m.executions) == 0 && m.err == nil {
		b.WriteString("  No tracked executions. Try: /run <pane> <command>\n\n")
	} else if m.err != nil {
		b.WriteString(fmt.Sprintf("  Error: %v\n\n", m.err))
	} else {
		// Rows (windowed when previewing)
		maxVis := m.maxVisibleExecutions()
		end := m.scrollOffset + maxVis
		if end > len(m.filtered) {
			end = len(m.filtered)
		}
		scrollable := len(m.filtered) > maxVis

		// Precompute cell values for visible rows
		type rowData struct {
			id, pane, command, status, exit string
		}
		rows := make([]rowData, 0, end-m.scrollOffset)
		for i := m.scrollOffset; i < end; i++ {
			rec := m.filtered[i]
			rows = append(rows, rowData{
				id:      shortID(rec.ID),
				pane:    truncate(rec.PaneTarget, 16),
				command: truncate(rec.Command, 44),
				status:  renderStatusWithAge(rec),
				exit:    renderExit(rec),
			})
		}

		// Measure column widths (using lipgloss.Width for ANSI-aware measurement)
		type colSpec struct {
			min, max, width int
			header          string
		}
		cols := []colSpec{
			{min: 2, max: 8, header: "ID"},
			{min: 4, max: 16, header: "PANE"},
			{min: 7, max: 44, header: "COMMAND"},
			{min: 7, max: 18, header: "STATUS"},
		}
		for _, r := range rows {
			vals := []string{r.id, r.pane, r.command, r.status}
			for j, v := range vals {
				w := lipgloss.Width(v)
				if w > cols[j].width {
					cols[j].width = w
				}
			}
		}
		// Also measure headers, then clamp
		for j := range cols {
			hw := len(cols[j].header)
			if hw > cols[j].width {
				cols[j].width = hw
			}
			if cols[j].width < cols[j].min {
				cols[j].width = cols[j].min
			}
			if cols[j].width > cols[j].max {
				cols[j].width = cols[j].max
			}
		}
		wID, wPane, wCmd, wStatus := cols[0].width, cols[1].width, cols[2].width, cols[3].width

		// Render header
		header := "    " + pad("ID", wID) + "  " + pad("PANE", wPane) + "  " + pad("COMMAND", wCmd) + "  " + pad("STATUS", wStatus) + "  EXIT"
		b.WriteString(headerStyle.Render(header))
		b.WriteString("\n")

		// Reserve constant height: when scrollable, always show both indicator lines
		if scrollable {
			if m.scrollOffset > 0 {
				b.WriteString(helpStyle.Render(fmt.Sprintf("    ↑ %d more", m.scrollOffset)))
			}
			b.WriteString("\n")
		}

		// Render rows
		for ri, r := range rows {
			i := m.scrollOffset + ri
			row := " " + pad(r.id, wID) + "  " + pad(r.pane, wPane) + "  " + pad(r.command, wCmd) + "  " + pad(r.status, wStatus) + "  " + r.exit

			if i == m.cursor {
				b.WriteString(cursorStyle.Render(" >"))
				b.WriteString(selectedRowStyle.Render(row))
			} else {
				b.WriteString("  ")
				b.WriteString(row)
			}
			b.WriteString("\n")
		}

		if scrollable {
			if end < len(m.filtered) {
				b.WriteString(helpStyle.Render(fmt.Sprintf("    ↓ %d more", len(m.filtered)-end)))
			}
			b.WriteString("\n")
		}

		b.WriteString("\n")
	}

	// Preview panel (height-limited to keep the execution list visible)
	if m.preview != nil {
		rec := m.previewExecution()

		borderTitle := fmt.Sprintf(" ─── %s on %s ", shortID(m.preview.ID), m.preview.Pane)
		titleWidth := lipgloss.Width(borderTitle)
		remaining := m.width - titleWidth - 2
		if remaining > 0 {
			borderTitle += strings.Repeat("─", remaining)
		}
		b.WriteString(previewBorderStyle.Render(" " + borderTitle))
		b.WriteString("\n")

		if rec != nil {
			b.WriteString(commandStyle.Render(" $ " + truncate(rec.Command, max(20, m.width-4))))
			b.WriteString("\n")

			// Budget: title+blank(2) + header(1) + meta(1) + visible rows +
			// scroll indicators(0 or 2) + gap(1) + borders(2) + input(1) +
			// help(1) + safety(1)
			visibleRows := m.maxVisibleExecutions()
			scrollIndicators := 0
			if len(m.filtered) > visibleRows {
				scrollIndicators = 2
			}
			overhead := 10 + visibleRows + scrollIndicators
			maxPreview := m.height - overhead
			if maxPreview < 3 {
				maxPreview = 3
			}

			if rec.Output == "" {
				b.WriteString(previewContentStyle.Render(" (no output yet)"))
				b.WriteString("\n")
			} else {
				// Show the last N lines (most recent output)
				previewLines := strings.Split(rec.Output, "\n")
				start := len(previewLines) - maxPreview
				if start < 0 {
					start = 0
				}
				for _, line := range previewLines[start:] {
					b.WriteString(previewContentStyle.Render(" " + line))
					b.WriteString("\n")
				}
			}
		} else {
			b.WriteString(previewContentStyle.Render(" Loading..."))
			b.WriteString("\n")
		}

		borderBottom := strings.Repeat("─", max(0, m.width-2))
		b.WriteString(previewBorderStyle.Render(" " + borderBottom))
		b.WriteString("\n")
	}

	// Input line (placeholder changes based on mode)
	if m.preview != nil {
		m.input.Placeholder = "Type and press enter to run another command on this pane..."
	} else {
		m.input.Placeholder = "Type to filter or /run <pane> <command>..."
	}
	b.WriteString(inputLabelStyle.Render(" > "))
	b.WriteString(m.input.View())
	b.WriteString("\n")

	// Help bar / cancel confirmation (same slot to avoid layout shift)
	if m.confirmCancel != nil {
		b.WriteString(confirmLabelStyle.Render(fmt.Sprintf("Cancel %s on %s?", shortID(m.confirmCancel.ID), m.confirmCancel.Pane)))
		b.WriteString("  ")
		b.WriteString(confirmKeyStyle.Render("Enter"))
		b.WriteString(confirmDimStyle.Render("confirm"))
		b.WriteString("  ")
		b.WriteString(confirmKeyStyle.Render("Esc"))
		b.WriteString(confirmDimStyle.Render("cancel"))
	} else if m.preview != nil {
		b.WriteString(helpStyle.Render("enter refresh  type+enter run here  esc close  j/k navigate  ctrl+k cancel"))
	} else if strings.HasPrefix(m.input.Value(), "/run") {
		b.WriteString(helpStyle.Render("/run <pane> <command>  —  run a command on a pane"))
	} else {
		b.WriteString(helpStyle.Render("enter inspect  /run  j/k navigate  ctrl+k cancel  q quit"))
	}
	b.WriteString("\n")

	return b.String()
}

func renderStatusWithAge(rec track.Execution) string {
	switch rec.Status {
	case track.StatusPending:
		return statusPending.Render("pending") + liveAge(rec)
	case track.StatusRunning:
		return statusRunning.Render("running") + liveAge(rec)
	case track.StatusCompleted:
		return statusCompleted.Render("completed") + runDuration(rec)
	case track.StatusError:
		return statusFailed.Render("error") + runDuration(rec)
	case track.StatusTimeout:
		return statusFailed.Render("timeout") + runDuration(rec)
	case track.StatusCancelled:
		return statusNeutral.Render("cancelled") + runDuration(rec)
	default:
		return statusNeutral.Render(string(rec.Status))
	}
}

func liveAge(rec track.Execution) string {
	return " " + ageStyle.Render(panes.FormatDurationCoarse(time.Since(rec.StartedAt)))
}

func runDuration(rec track.Execution) string {
	if rec.EndedAt == nil {
		return ""
	}
	return " " + ageStyle.Render(panes.FormatDurationCoarse(rec.EndedAt.Sub(rec.StartedAt)))
}

func renderExit(rec track.Execution) string {
	if rec.ExitCode == nil {
		return statusNeutral.Render("-")
	}
	if *rec.ExitCode == 0 {
		return statusRunning.Render("0")
	}
	return statusFailed.Render(strconv.Itoa(*rec.ExitCode))
}
