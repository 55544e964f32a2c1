package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jpalmerr/fleetview"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)

	statusColors = map[fleetview.Status]lipgloss.Color{
		fleetview.StatusProvisioning: lipgloss.Color("12"),
		fleetview.StatusStaging:      lipgloss.Color("11"),
		fleetview.StatusRunning:      lipgloss.Color("10"),
		fleetview.StatusServing:      lipgloss.Color("10"),
		fleetview.StatusStopping:     lipgloss.Color("214"),
		fleetview.StatusStopped:      lipgloss.Color("8"),
		fleetview.StatusTerminated:   lipgloss.Color("8"),
		fleetview.StatusUnknown:      lipgloss.Color("9"),
	}
)

func statusStyle(s fleetview.Status) lipgloss.Style {
	style := lipgloss.NewStyle()
	if c, ok := statusColors[s]; ok {
		style = style.Foreground(c)
	}
	return style
}

// renderFleet renders the instances of snap as a table followed by a summary
// line.
func renderFleet(snap fleetview.Snapshot) string {
	instances := snap.Sorted()
	if len(instances) == 0 {
		return dimStyle.Render("no instances") + "\n" + renderSummary(snap.Summary) + "\n"
	}

	nameWidth := len("NAME")
	for _, inst := range instances {
		nameWidth = max(nameWidth, len(inst.Name))
	}
	nameCol := lipgloss.NewStyle().Width(nameWidth + 2)
	statusCol := lipgloss.NewStyle().Width(len(fleetview.StatusProvisioning) + 2)

	var b strings.Builder
	b.WriteString(nameCol.Render(headerStyle.Render("NAME")))
	b.WriteString(statusCol.Render(headerStyle.Render("STATUS")))
	b.WriteString(headerStyle.Render("EXTERNAL IP"))
	b.WriteString("\n")

	for _, inst := range instances {
		ip := inst.ExternalIP
		if ip == "" {
			ip = dimStyle.Render("-")
		}
		b.WriteString(nameCol.Render(inst.Name))
		b.WriteString(statusCol.Render(statusStyle(inst.Status).Render(inst.Status.String())))
		b.WriteString(ip)
		b.WriteString("\n")
	}

	b.WriteString(renderSummary(snap.Summary))
	b.WriteString("\n")
	return b.String()
}

// renderSummary lists non-zero statuses in lifecycle order, then the total.
func renderSummary(summary fleetview.Summary) string {
	parts := make([]string, 0, len(fleetview.Statuses)+1)
	for _, s := range fleetview.Statuses {
		if n := summary.Count(s); n > 0 {
			parts = append(parts, statusStyle(s).Render(fmt.Sprintf("%s %d", s, n)))
		}
	}
	parts = append(parts, lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("%s %d", fleetview.StatusTotal, summary.Count(fleetview.StatusTotal)),
	))
	return strings.Join(parts, "  ")
}
