package ui

import "github.com/Joserraldo/diabetes/internal/domain"

type layoutState struct {
	width  int
	height int

	gap int

	leftW  int
	rightW int

	headerH int
	bodyH   int
	resultH int
	logH    int

	tooSmall bool
}

const (
	headerHeight = 3
	resultHeight = 9
	minLogHeight = 4

	minLeftWidth  = 40
	minRightWidth = 34
)

func (m *Model) reflow() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	usableH := max(0, m.height-1) // footer hints
	m.layout = computeLayout(m.width, usableH)
	if m.layout.tooSmall || m.state.Screen != domain.ScreenForm {
		return
	}

	m.formVP.Width = panelContentWidth(m.layout.leftW)
	m.formVP.Height = panelBodyHeight(m.layout.bodyH)
	content, selectedLine := m.renderMetrics(m.formVP.Width)
	m.formVP.SetContent(content)
	m.keepVisible(selectedLine)
}

// keepVisible scrolls the metrics viewport just enough to show line.
func (m *Model) keepVisible(line int) {
	h := m.formVP.Height
	if h <= 0 {
		return
	}
	switch {
	case line < m.formVP.YOffset:
		m.formVP.SetYOffset(line)
	case line >= m.formVP.YOffset+h:
		m.formVP.SetYOffset(line - h + 1)
	}
}

func computeLayout(width int, height int) layoutState {
	const gap = 1
	l := layoutState{width: width, height: height, gap: gap, headerH: headerHeight}

	if width < minLeftWidth+gap+minRightWidth || height < headerHeight+resultHeight+minLogHeight {
		l.tooSmall = true
		return l
	}

	// The metrics column takes a bit more than half.
	l.leftW = max(minLeftWidth, (width-gap)*11/20)
	l.rightW = width - gap - l.leftW
	if l.rightW < minRightWidth {
		l.rightW = minRightWidth
		l.leftW = width - gap - l.rightW
	}

	l.bodyH = height - headerHeight
	l.resultH = resultHeight
	l.logH = l.bodyH - l.resultH
	return l
}
