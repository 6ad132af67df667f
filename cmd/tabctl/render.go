package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/tabvoice/internal/settings"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A40000"))
	onStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00")).Bold(true)
	offStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	statusStyles = map[string]lipgloss.Style{
		"active":   lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00")).Bold(true),
		"starting": lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")),
		"stopping": lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")),
		"inactive": lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00AAAA")).
			Padding(0, 1)
)

func renderStatus(id settings.TabID, status, errText string) string {
	style, ok := statusStyles[status]
	if !ok {
		style = dimStyle
	}
	out := tabLabel(id) + "  " + style.Render(status)
	if errText != "" {
		out += "  " + errorStyle.Render(errText)
	}
	return out
}

func flag(name string, on bool) string {
	if on {
		return onStyle.Render("● " + name)
	}
	return offStyle.Render("○ " + name)
}

func renderSettings(id settings.TabID, cfg settings.EnhancementConfig) string {
	var sb strings.Builder
	sb.WriteString(tabLabel(id))
	sb.WriteString("\n")
	sb.WriteString(strings.Join([]string{
		flag("voice", cfg.VoiceEnhancementEnabled),
		flag("noise cancel", cfg.NoiseCancelEnabled),
		flag("normalize", cfg.NormalizeEnabled),
	}, "   "))
	sb.WriteString("\n\n")

	rows := make([]string, settings.BandCount)
	for i, freq := range settings.BandFrequencies {
		rows[i] = fmt.Sprintf("%6s Hz  %+6.1f dB  %s", formatFreq(freq), cfg.EQGain[i], bar(cfg.EQGain[i]))
	}
	sb.WriteString(strings.Join(rows, "\n"))
	return boxStyle.Render(sb.String())
}

func formatFreq(hz float64) string {
	if hz >= 1000 {
		return fmt.Sprintf("%gk", hz/1000)
	}
	return fmt.Sprintf("%g", hz)
}

// bar draws a gain as a centred meter, one cell per 3 dB.
func bar(gain float64) string {
	const half = int(settings.MaxBandGainDB / 3)
	n := int(gain / 3)
	left := strings.Repeat(" ", half)
	right := strings.Repeat(" ", half)
	switch {
	case n > 0:
		right = onStyle.Render(strings.Repeat("█", n)) + strings.Repeat(" ", half-n)
	case n < 0:
		left = strings.Repeat(" ", half+n) + offStyle.Render(strings.Repeat("█", -n))
	}
	return left + dimStyle.Render("│") + right
}
