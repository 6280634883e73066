package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/Joserraldo/diabetes/internal/domain"
	"github.com/Joserraldo/diabetes/internal/predict"
)

const appTitle = "Diabetes risk predictor"

func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Loading…"
	}

	usableH := max(0, m.height-1) // footer hints
	footer := m.footerHints()
	if usableH == 0 {
		return footer
	}

	var body string
	switch {
	case m.engineDone:
		body = lipgloss.Place(m.width, usableH, lipgloss.Center, lipgloss.Center, "Session ended. Press ctrl+c to exit.")
	case m.state.Screen == domain.ScreenConnect:
		body = lipgloss.Place(m.width, usableH, lipgloss.Center, lipgloss.Center, m.connectView())
	default:
		if m.layout.width != m.width || m.layout.height != usableH {
			m.reflow()
		}
		if m.layout.tooSmall {
			body = minSizeView(m.width, usableH)
			break
		}
		header := panel(appTitle, m.renderHeader(panelContentWidth(m.width)), m.width, m.layout.headerH)
		metrics := panel("Patient data", m.formVP.View(), m.layout.leftW, m.layout.bodyH)
		result := panel("Result", m.renderResult(panelContentWidth(m.layout.rightW)), m.layout.rightW, m.layout.resultH)
		logs := panel("Activity", m.renderLogs(panelContentWidth(m.layout.rightW), panelBodyHeight(m.layout.logH)), m.layout.rightW, m.layout.logH)

		right := lipgloss.JoinVertical(lipgloss.Top, result, logs)
		columns := lipgloss.JoinHorizontal(lipgloss.Top, metrics, strings.Repeat(" ", m.layout.gap), right)
		body = lipgloss.JoinVertical(lipgloss.Top, header, columns)
	}

	out := lipgloss.JoinVertical(lipgloss.Top, body, footer)
	if m.modal.active {
		modal := m.modalView(usableH)
		x := max(0, (m.width-lipgloss.Width(modal))/2)
		y := max(0, (usableH-len(splitLines(modal)))/2)
		return overlayAt(out, m.width, m.height, modal, x, y)
	}
	return out
}

func (m *Model) keyHintsLine() string {
	switch {
	case m.modal.active:
		return "Enter/Esc Dismiss  ctrl+c Quit"
	case m.state.Screen == domain.ScreenConnect:
		return "Tab Switch field  Enter Connect  ctrl+c Quit"
	default:
		return "↑/↓ Select  ←/→ Adjust  [/] ×10  s Predict  b Back  ctrl+c Quit"
	}
}

func (m *Model) footerHints() string {
	hint := mutedStyle.Render(truncatePlain(m.keyHintsLine(), m.width))
	return lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, hint)
}

func (m *Model) connectView() string {
	boxW := min(60, m.width)
	contentW := panelContentWidth(boxW)
	fieldW := max(1, contentW-7)
	m.hostInput.Width = fieldW
	m.portInput.Width = fieldW

	label := func(name string, focused bool) string {
		if focused {
			return selectedStyle.Render(name)
		}
		return mutedStyle.Render(name)
	}

	lines := []string{
		truncatePlain("Enter the address of the prediction service.", contentW),
		"",
		label("Host ", m.focus == fieldHost) + "  " + m.hostInput.View(),
		label("Port ", m.focus == fieldPort) + "  " + m.portInput.View(),
		"",
		mutedStyle.Render(truncatePlain("Predictions are sent to http://<host>:<port>/predict", contentW)),
	}
	return panel(appTitle, strings.Join(lines, "\n"), boxW, len(lines)+2)
}

func (m *Model) renderHeader(width int) string {
	parts := []string{
		"Target " + versionStyle.Render(predict.URL(m.state.Target)),
		"Mode " + m.mode.Label(),
	}
	if v := strings.TrimSpace(m.meta.Version); v != "" {
		parts = append(parts, mutedStyle.Render(formatVersion(v)))
	}
	return truncateANSI(strings.Join(parts, mutedStyle.Render("  ·  ")), width)
}

// renderMetrics returns the form body and the line index of the selected row.
func (m *Model) renderMetrics(width int) (string, int) {
	var lines []string
	selectedLine := 0
	idx := 0
	for ci, c := range domain.Categories() {
		if ci > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, categoryStyle.Render(truncatePlain(c.Title, width)))
		for _, key := range c.Keys {
			if idx == m.selected {
				selectedLine = len(lines)
			}
			lines = append(lines, m.renderMetricRow(key, idx == m.selected, width))
			idx++
		}
	}
	return strings.Join(lines, "\n"), selectedLine
}

func (m *Model) renderMetricRow(key domain.MetricKey, selected bool, width int) string {
	metric, ok := domain.LookupMetric(key)
	if !ok {
		return ""
	}
	v := m.state.Snapshot[key]

	marker, lStyle := "  ", labelStyle
	if selected {
		marker, lStyle = activeStyle.Render("▸ "), selectedStyle
	}

	value := metric.Format(v)
	valueW := 14
	barW := 0
	if metric.Kind == domain.KindContinuous && width >= 48 {
		barW = 12
	}
	labelW := max(1, width-2-valueW-barW-2)

	line := marker + lStyle.Render(padRight(truncatePlain(metric.Label, labelW), labelW)) + " "
	if barW > 0 {
		line += sliderBar(metric, v, barW) + " "
	}
	line += valueStyle(domain.GradeValue(key, v)).Render(padLeft(truncatePlain(value, valueW), valueW))
	return truncateANSI(line, width)
}

// sliderBar draws the value's position within the metric range.
func sliderBar(metric domain.Metric, v float64, width int) string {
	if width <= 1 || metric.Max <= metric.Min {
		return strings.Repeat(" ", max(0, width))
	}
	frac := (v - metric.Min) / (metric.Max - metric.Min)
	pos := int(frac*float64(width-1) + 0.5)
	pos = min(max(pos, 0), width-1)
	return activeStyle.Render(strings.Repeat("━", pos)+"●") + mutedStyle.Render(strings.Repeat("─", width-1-pos))
}

func (m *Model) renderResult(width int) string {
	out := m.state.Outcome
	var lines []string
	switch {
	case m.state.Busy:
		lines = []string{
			m.spin.View() + " Predicting…",
			mutedStyle.Render(truncatePlain("POST "+predict.URL(m.state.Target), width)),
		}
	case out.Status == domain.OutcomeSuccess:
		sev := predict.Classify(out.Message)
		lines = []string{
			severityStyle(sev).Render(strings.ToUpper(string(sev)) + " RISK"),
			"",
		}
		lines = append(lines, splitLines(wordwrap.String(out.Message, width))...)
		lines = append(lines, "", "Probability "+selectedStyle.Render(predict.FormatProbability(out.Probability)))
	case out.Status == domain.OutcomeFailure:
		lines = []string{errStyle.Render("Last request failed")}
		lines = append(lines, splitLines(wordwrap.String(mutedStyle.Render(out.Reason), width))...)
	default:
		lines = []string{mutedStyle.Render("No prediction yet."), "", "Adjust the values, then press s."}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderLogs(width int, height int) string {
	if len(m.logs) == 0 {
		return mutedStyle.Render(truncatePlain("(nothing yet)", width))
	}
	if height <= 0 {
		return ""
	}
	// Wrap newest first and stop once the panel is full.
	var lines []string
	for i := len(m.logs) - 1; i >= 0 && len(lines) < height; i-- {
		e := m.logs[i]
		ts := e.TS
		if ts.IsZero() {
			ts = time.Now()
		}
		prefix, style := logPrefix(e.Level)
		head := ts.Format("15:04:05") + " " + style.Render(prefix) + " "
		headW := lipgloss.Width(head)
		msgW := max(1, width-headW)

		wrapped := splitLines(wordwrap.String(e.Message, msgW))
		if len(wrapped) == 0 {
			wrapped = []string{""}
		}
		entry := make([]string, 0, len(wrapped))
		for j, part := range wrapped {
			lead := head
			if j > 0 {
				lead = strings.Repeat(" ", headW)
			}
			entry = append(entry, lead+truncatePlain(part, msgW))
		}
		lines = append(entry, lines...)
	}
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return strings.Join(lines, "\n")
}

func (m *Model) modalView(height int) string {
	boxW := min(64, max(30, m.width-8))
	contentW := panelContentWidth(boxW)

	msg := splitLines(wordwrap.String(m.modal.message, contentW))
	maxMsg := max(1, height-6)
	if len(msg) > maxMsg {
		msg = msg[:maxMsg]
	}
	lines := append(msg, "", mutedStyle.Render("Enter/Esc: dismiss"))
	return panel(m.modal.title, strings.Join(lines, "\n"), boxW, len(lines)+2)
}

func padLeft(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return strings.Repeat(" ", width-w) + s
	}
	return s
}

func formatVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "dev"
	}
	if v[0] >= '0' && v[0] <= '9' {
		return "v" + v
	}
	return v
}

func minSizeView(width int, height int) string {
	msgText := "Increase terminal size"
	if width < 22 {
		msgText = "Increase size"
	}
	msg := lipgloss.NewStyle().Bold(true).Render(truncatePlain(msgText, width))
	sub := lipgloss.NewStyle().Faint(true).Render(truncatePlain(fmt.Sprintf("Current: %dx%d", width, height+1), width))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, msg+"\n"+sub)
}
