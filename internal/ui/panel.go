package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	reflowtruncate "github.com/muesli/reflow/truncate"
)

// panel draws a rounded box of exactly width x height cells with the title
// set into the top border.
func panel(title string, body string, width int, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	b := panelBorder
	contentW := panelContentWidth(width)
	innerH := max(0, height-2)

	out := make([]string, 0, height)
	out = append(out, titledTopBorder(width, title, b))
	for _, l := range fitLines(body, contentW, innerH) {
		out = append(out, b.Left+" "+l+" "+b.Right)
	}
	out = append(out, b.BottomLeft+strings.Repeat(b.Bottom, max(0, width-2))+b.BottomRight)
	return strings.Join(out, "\n")
}

func titledTopBorder(width int, title string, b lipgloss.Border) string {
	fillW := width - lipgloss.Width(b.TopLeft) - lipgloss.Width(b.TopRight)
	if fillW <= 0 {
		return b.TopLeft + b.TopRight
	}
	title = strings.TrimSpace(title)
	room := fillW - lipgloss.Width(b.Top) - 2
	if title == "" || room <= 0 {
		return b.TopLeft + strings.Repeat(b.Top, fillW) + b.TopRight
	}

	block := b.Top + " " + panelTitleStyle.Render(runewidth.Truncate(title, room, "")) + " "
	// Hard cut: the border line must never end in an ellipsis.
	block = reflowtruncate.StringWithTail(block, uint(fillW), "")
	rest := max(0, fillW-lipgloss.Width(block))
	return b.TopLeft + block + strings.Repeat(b.Top, rest) + b.TopRight
}

// Border 2 cells, padding 2 cells.
func panelContentWidth(panelWidth int) int {
	return max(0, panelWidth-4)
}

func panelBodyHeight(panelHeight int) int {
	return max(0, panelHeight-2)
}

func fitLines(s string, width int, height int) []string {
	if height <= 0 || width <= 0 {
		return nil
	}
	raw := splitLines(s)
	out := make([]string, height)
	for i := range out {
		line := ""
		if i < len(raw) {
			line = raw[i]
		}
		out[i] = padRight(truncateANSI(line, width), width)
	}
	return out
}

// overlayAt paints overlay over base with its top-left corner at (x, y).
func overlayAt(base string, baseW int, baseH int, overlay string, x int, y int) string {
	if baseW <= 0 || baseH <= 0 || strings.TrimSpace(overlay) == "" {
		return base
	}
	lines := splitLines(base)
	if len(lines) > baseH {
		lines = lines[:baseH]
	}
	for len(lines) < baseH {
		lines = append(lines, "")
	}
	for i := range lines {
		lines[i] = padRight(truncateANSI(lines[i], baseW), baseW)
	}

	x, y = max(0, x), max(0, y)
	if x >= baseW || y >= baseH {
		return strings.Join(lines, "\n")
	}
	ow := max(1, lipgloss.Width(overlay))
	for i, ol := range splitLines(overlay) {
		row := y + i
		if row >= baseH {
			break
		}
		ol = padRight(truncateANSI(ol, ow), ow)
		lines[row] = ansi.Cut(lines[row], 0, x) + ol + ansi.Cut(lines[row], x+ow, baseW)
	}
	return strings.Join(lines, "\n")
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func truncatePlain(s string, width int) string {
	switch {
	case width <= 0:
		return ""
	case runewidth.StringWidth(s) <= width:
		return s
	case width == 1:
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "…")
}

func truncateANSI(s string, width int) string {
	switch {
	case width <= 0:
		return ""
	case lipgloss.Width(s) <= width:
		return s
	case width == 1:
		return reflowtruncate.String(s, uint(width))
	}
	return reflowtruncate.StringWithTail(s, uint(width), "…")
}
