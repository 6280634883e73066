package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Joserraldo/diabetes/internal/domain"
)

var (
	panelBorder     = lipgloss.RoundedBorder()
	panelTitleStyle = lipgloss.NewStyle().Bold(true)

	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	versionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
)

func severityStyle(s domain.Severity) lipgloss.Style {
	switch s {
	case domain.SeverityHigh:
		return errStyle.Bold(true)
	case domain.SeverityModerate:
		return warnStyle.Bold(true)
	default:
		return okStyle.Bold(true)
	}
}

func valueStyle(level domain.ValueLevel) lipgloss.Style {
	switch level {
	case domain.LevelOK:
		return okStyle
	case domain.LevelWarn:
		return warnStyle
	case domain.LevelHigh:
		return errStyle
	case domain.LevelLow:
		return activeStyle
	default:
		return labelStyle
	}
}

func logPrefix(level domain.LogLevel) (string, lipgloss.Style) {
	switch level {
	case domain.LogError:
		return "✖", errStyle
	case domain.LogWarning:
		return "⚠", warnStyle
	default:
		return "•", mutedStyle
	}
}
