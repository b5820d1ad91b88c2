package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/yllada/vpnht/vpn"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7dd3fc"))
	labelStyle = lipgloss.NewStyle().Bold(true).Width(12)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func statusLine(label, value string, style lipgloss.Style) string {
	return labelStyle.Render(label+":") + style.Render(value)
}

func boolStyle(ok bool) lipgloss.Style {
	if ok {
		return okStyle
	}
	return warnStyle
}

func stateStyle(state vpn.MonitorState) lipgloss.Style {
	switch state {
	case vpn.StateUp:
		return okStyle
	case vpn.StateDown:
		return errStyle
	default:
		return warnStyle
	}
}
