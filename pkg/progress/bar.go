package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/VatsalSy/MPTimer/internal/timer"
)

// Cell glyphs of the tick bar.
const (
	glyphFill   = '█'
	glyphEmpty  = ' '
	glyphMarker = '┃'
)

// BarStyle holds the tick bar's colours and width.
type BarStyle struct {
	Border     string
	Background string
	Fill       string
	Threshold  string
	Width      int
}

// DefaultBarStyle returns the stock colours.
func DefaultBarStyle() BarStyle {
	return BarStyle{
		Border:     "#73CBF7",
		Background: "#082C55",
		Fill:       "#FFFFFF",
		Threshold:  "#FFA622",
		Width:      40,
	}
}

// Bar renders the elapsed fraction of the tick window with an optional
// commit marker.
type Bar struct {
	style  BarStyle
	frame  lipgloss.Style
	fill   lipgloss.Style
	empty  lipgloss.Style
	marker lipgloss.Style
	hint   lipgloss.Style
}

// NewBar creates a bar renderer.
func NewBar(style BarStyle) *Bar {
	if style.Width < 1 {
		style.Width = DefaultBarStyle().Width
	}

	bg := lipgloss.Color(style.Background)
	return &Bar{
		style: style,
		frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(style.Border)),
		fill:   lipgloss.NewStyle().Foreground(lipgloss.Color(style.Fill)).Background(bg),
		empty:  lipgloss.NewStyle().Background(bg),
		marker: lipgloss.NewStyle().Foreground(lipgloss.Color(style.Threshold)).Background(bg).Bold(true),
		hint:   lipgloss.NewStyle().Foreground(lipgloss.Color(style.Threshold)).Italic(true),
	}
}

// Width returns the number of cells.
func (b *Bar) Width() int {
	return b.style.Width
}

// Resize changes the number of cells, keeping at least one.
func (b *Bar) Resize(width int) {
	if width < 1 {
		width = 1
	}
	b.style.Width = width
}

// Cells lays out the bar without styling. commitFraction < 0 omits the
// marker.
func (b *Bar) Cells(progress, commitFraction float64) []rune {
	width := b.style.Width
	cells := make([]rune, width)

	filled := int(clampFraction(progress) * float64(width))
	for i := range cells {
		if i < filled {
			cells[i] = glyphFill
		} else {
			cells[i] = glyphEmpty
		}
	}

	if commitFraction >= 0 {
		idx := int(clampFraction(commitFraction) * float64(width))
		if idx >= width {
			idx = width - 1
		}
		cells[idx] = glyphMarker
	}

	return cells
}

// Render draws the bar inside its border.
func (b *Bar) Render(progress, commitFraction float64) string {
	var sb strings.Builder
	for _, c := range b.Cells(progress, commitFraction) {
		switch c {
		case glyphFill:
			sb.WriteString(b.fill.Render(string(c)))
		case glyphMarker:
			sb.WriteString(b.marker.Render(string(c)))
		default:
			sb.WriteString(b.empty.Render(string(c)))
		}
	}
	return b.frame.Render(sb.String())
}

// RenderOutput draws a tracker output. fraction maps the commit offset onto
// the bar, usually the tracker predictor's Fraction. Invisible outputs render
// nothing.
func (b *Bar) RenderOutput(out timer.Output, fraction func(time.Duration) float64, hint string) string {
	if !out.Visible {
		return ""
	}

	view := b.Render(out.Progress, fraction(out.CommitOffset))
	if out.AwaitingResync && hint != "" {
		view = lipgloss.JoinVertical(lipgloss.Left, view, b.hint.Render(hint))
	}
	return view
}

// Caption describes an output in text, e.g. "1.50s / 3.00s  commit by 1.00s".
func Caption(out timer.Output, period time.Duration) string {
	elapsed := time.Duration(out.Progress * float64(period))
	caption := fmt.Sprintf("%.2fs / %.2fs", elapsed.Seconds(), period.Seconds())
	if out.CommitOffset >= 0 {
		caption += fmt.Sprintf("  commit by %.2fs", out.CommitOffset.Seconds())
	}
	return caption
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
