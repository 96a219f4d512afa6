package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/rileyhilliard/hfwatch/internal/errors"
	"github.com/rileyhilliard/hfwatch/internal/heightmap"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
	"github.com/rileyhilliard/hfwatch/internal/util"
)

func renderMap(s *terrain.Snapshot, cols int) string {
	return heightmap.Terminal(s, cols)
}

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	list := m.renderCandidates()
	field := m.renderField()
	if m.sideBySide() {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, list, " ", field))
	} else {
		b.WriteString(lipgloss.JoinVertical(lipgloss.Left, list, field))
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the title and connection summary.
func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render("hfwatch")

	var state string
	switch {
	case m.busy:
		state = m.spinner.View() + " attaching to " + string(m.target)
	case m.connected:
		state = ConnectedStyle.Render(StatusConnected) + " " + string(m.endpoint)
	case m.endpoint != "":
		state = DisconnectedStyle.Render(StatusDisconnected) + " " + string(m.endpoint) + " (disconnected)"
	default:
		state = StatusDisconnected + " not attached"
	}

	stats := lipgloss.NewStyle().
		Foreground(ColorTextSecondary).
		Render(fmt.Sprintf(" | %s | %s", util.Count(len(m.candidates), "endpoint", "endpoints"), state))

	return HeaderStyle.Render(title + stats)
}

// renderCandidates renders the endpoint list.
func (m Model) renderCandidates() string {
	var lines []string
	lines = append(lines, LabelStyle.Render("Endpoints ")+MutedStyle.Render(m.pattern))

	if len(m.candidates) == 0 {
		lines = append(lines, MutedStyle.Render("No endpoints found"))
	}
	for i, id := range m.candidates {
		marker := "  "
		style := ValueStyle
		if i == m.selected {
			marker = StatusSelected + " "
			style = SelectedStyle
		}
		name := string(id)
		if m.connected && id == m.endpoint {
			name += " " + ConnectedStyle.Render(StatusConnected)
		}
		lines = append(lines, style.Render(marker)+style.Render(name))
	}

	panel := PanelStyle
	if !m.connected {
		panel = ActivePanelStyle
	}
	if m.sideBySide() {
		panel = panel.Width(listWidth)
	}
	return panel.Render(strings.Join(lines, "\n"))
}

// renderField renders the heightfield panel.
func (m Model) renderField() string {
	panel := PanelStyle
	if m.connected {
		panel = ActivePanelStyle
	}

	switch {
	case m.rendered != "":
		return panel.Render(m.rendered)
	case m.connected:
		return panel.Render(MutedStyle.Render("Waiting for data..."))
	default:
		return panel.Render(MutedStyle.Render("Select an endpoint and press enter"))
	}
}

// renderStatus renders the snapshot summary and the last error.
func (m Model) renderStatus() string {
	var parts []string
	if m.snap != nil {
		parts = append(parts,
			LabelStyle.Render(fmt.Sprintf("%d×%d", m.snap.Size, m.snap.Size)),
			LabelStyle.Render("range ")+ValueStyle.Render(formatRange(m.stats)),
		)
		if m.stats.NoData > 0 {
			parts = append(parts, DisconnectedStyle.Render(humanize.Comma(int64(m.stats.NoData))+" no-data"))
		}
		if !m.snap.FetchedAt.IsZero() {
			parts = append(parts, MutedStyle.Render("updated "+humanize.RelTime(m.snap.FetchedAt, m.now, "ago", "from now")))
		}
		parts = append(parts, MutedStyle.Render(util.Count(m.frames, "frame", "frames")))
	}

	line := strings.Join(parts, MutedStyle.Render(" · "))
	if m.lastErr != nil {
		if line != "" {
			line += "\n"
		}
		line += ErrorStyle.Render("✗ " + errors.Summary(m.lastErr))
	}
	return FooterStyle.Render(line)
}

func formatRange(st terrain.Stats) string {
	if st.Finite == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.2f..%.2f", st.Min, st.Max)
}

// renderFooter renders the key hints.
func (m Model) renderFooter() string {
	return FooterStyle.Render(m.help.View(m.keys))
}
