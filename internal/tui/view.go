package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Dashboard Rendering
// =============================================================================

func (m Model) renderDashboard() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderBackend())

	if m.probeStats.Count > 0 {
		sections = append(sections, m.renderProbeStats())
	}
	if m.backend != nil && m.backend.Healthy {
		sections = append(sections, m.renderBackendResources())
	}
	if m.updateActive || m.updateDone {
		sections = append(sections, m.renderUpdateProgress())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Sections
// =============================================================================

func (m Model) renderHeader() string {
	title := titleStyle.Render(" openchamber-desktop " + m.version)
	state := stateStyle(m.state).Render(m.state.String())
	elapsed := mutedStyle.Render("up " + formatDuration(m.Elapsed()))

	return fmt.Sprintf("%s  %s  %s", title, state, elapsed)
}

func (m Model) renderBackend() string {
	var lines []string

	lines = append(lines, subtitleStyle.Render("Backend"))
	if m.baseURL != "" {
		lines = append(lines, baseStyle.Render("  url  "+m.baseURL))
	} else {
		lines = append(lines, mutedStyle.Render("  url  (not published)"))
	}
	if m.pid > 0 {
		lines = append(lines, baseStyle.Render(fmt.Sprintf("  pid  %d", m.pid)))
	}

	return sectionStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderProbeStats() string {
	lines := []string{
		subtitleStyle.Render("Health Probes"),
		baseStyle.Render(fmt.Sprintf("  samples  %d", m.probeStats.Count)),
		baseStyle.Render(fmt.Sprintf("  p50      %s", formatLatency(m.probeStats.P50))),
		baseStyle.Render(fmt.Sprintf("  p95      %s", formatLatency(m.probeStats.P95))),
		baseStyle.Render(fmt.Sprintf("  max      %s", formatLatency(m.probeStats.Max))),
	}
	return sectionStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderBackendResources() string {
	lines := []string{
		subtitleStyle.Render("Backend Resources"),
		baseStyle.Render(fmt.Sprintf("  goroutines  %d", m.backend.Goroutines)),
		baseStyle.Render(fmt.Sprintf("  memory      %s", formatBytes(m.backend.ResidentMemory))),
		baseStyle.Render(fmt.Sprintf("  cpu         %.1f%%", m.backend.CPURate*100)),
	}
	return sectionStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderUpdateProgress() string {
	var lines []string
	lines = append(lines, subtitleStyle.Render("Update"))

	switch {
	case m.updateDone:
		lines = append(lines, statusOK.Render("  download complete"))
	case m.UpdateFraction() < 0:
		lines = append(lines, baseStyle.Render(fmt.Sprintf("  downloaded %s", formatBytes(m.updateDownloaded))))
	default:
		lines = append(lines, baseStyle.Render(fmt.Sprintf("  %s %3.0f%%",
			renderBar(m.UpdateFraction(), 30), m.UpdateFraction()*100)))
	}

	return sectionStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderFooter() string {
	parts := []string{"q quit"}
	if m.metricsAddr != "" {
		parts = append(parts, "metrics "+m.metricsAddr)
	}
	return mutedStyle.Render(" " + strings.Join(parts, "  |  "))
}

// =============================================================================
// Formatting Helpers
// =============================================================================

// renderBar draws a fixed-width progress bar for fraction 0.0..1.0.
func renderBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%dB", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(b)/float64(div), "KMGTPE"[exp])
}
