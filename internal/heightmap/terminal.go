package heightmap

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
)

const halfBlock = "▀"

var (
	termCheckerA = lipgloss.Color("#ff0000")
	termCheckerB = lipgloss.Color("#ffff00")
)

// Terminal renders s at most cols characters wide using the default
// lipgloss renderer. See TerminalWith.
func Terminal(s *terrain.Snapshot, cols int) string {
	return TerminalWith(lipgloss.DefaultRenderer(), s, cols)
}

// TerminalWith renders s as rows of upper half blocks, two samples per
// character cell: the top sample is the foreground, the bottom one the
// background. Grids wider than cols are downsampled by nearest neighbour.
// No-data samples show the checkerboard.
func TerminalWith(r *lipgloss.Renderer, s *terrain.Snapshot, cols int) string {
	if s.Empty() || cols <= 0 {
		return ""
	}

	w := min(cols, s.Size)
	h := w // square grid
	st := s.Stats()

	// One style per color pair; a frame has far fewer pairs than cells.
	styles := make(map[[2]lipgloss.Color]lipgloss.Style)
	styleFor := func(fg, bg lipgloss.Color) lipgloss.Style {
		key := [2]lipgloss.Color{fg, bg}
		style, ok := styles[key]
		if !ok {
			style = r.NewStyle().Foreground(fg)
			if bg != "" {
				style = style.Background(bg)
			}
			styles[key] = style
		}
		return style
	}

	sample := func(px, py int) lipgloss.Color {
		sx := px * s.Size / w
		sy := py * s.Size / h
		v := s.At(sx, sy)
		if terrain.IsNoData(v) {
			if (px/2+py/2)%2 == 0 {
				return termCheckerA
			}
			return termCheckerB
		}
		g := Gray(v, st)
		return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", g, g, g))
	}

	var b strings.Builder
	for py := 0; py < h; py += 2 {
		if py > 0 {
			b.WriteByte('\n')
		}
		for px := 0; px < w; px++ {
			top := sample(px, py)
			var bottom lipgloss.Color
			if py+1 < h {
				bottom = sample(px, py+1)
			}
			b.WriteString(styleFor(top, bottom).Render(halfBlock))
		}
	}
	return b.String()
}
