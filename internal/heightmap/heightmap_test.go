package heightmap

import (
	"bytes"
	"image/color"
	"image/png"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	posInf = float32(math.Inf(1))
	negInf = float32(math.Inf(-1))
	nan    = float32(math.NaN())
)

func snap(t *testing.T, size int, heights ...float32) *terrain.Snapshot {
	t.Helper()
	s, err := terrain.NewSnapshot("A", size, heights)
	require.NoError(t, err)
	return s
}

func TestGray(t *testing.T) {
	st := terrain.Stats{Min: 10, Max: 20, Finite: 2}

	assert.Equal(t, uint8(0), Gray(10, st))
	assert.Equal(t, uint8(0xff), Gray(20, st))
	assert.Equal(t, uint8(128), Gray(15, st))
	assert.Equal(t, uint8(0), Gray(5, st), "clamped below")
	assert.Equal(t, uint8(0xff), Gray(25, st), "clamped above")

	flat := terrain.Stats{Min: 3, Max: 3, Finite: 4}
	assert.Equal(t, uint8(0), Gray(3, flat))
}

func TestGray_WideRange(t *testing.T) {
	s := snap(t, 2, -3e38, 0, 1e38, 3e38)
	st := s.Stats()

	assert.Equal(t, uint8(0), Gray(-3e38, st))
	assert.Equal(t, uint8(128), Gray(0, st))
	assert.Equal(t, uint8(0xff), Gray(3e38, st))

	g := Gray(1e38, st)
	assert.Greater(t, g, uint8(128))
	assert.Less(t, g, uint8(0xff))

	img := Image(s)
	assert.Equal(t, uint8(0xff), img.NRGBAAt(1, 1).R, "max sample is white")
}

func TestImage(t *testing.T) {
	s := snap(t, 2, 0, 10, 5, posInf)
	img := Image(s)

	require.Equal(t, 2, img.Bounds().Dx())
	require.Equal(t, 2, img.Bounds().Dy())

	assert.Equal(t, color.NRGBA{0, 0, 0, 0xff}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{0xff, 0xff, 0xff, 0xff}, img.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{128, 128, 128, 0xff}, img.NRGBAAt(0, 1))
	assert.Equal(t, uint8(0), img.NRGBAAt(1, 1).A, "+Inf is transparent")
}

func TestImage_NoDataPerSample(t *testing.T) {
	s := snap(t, 2, nan, 1, negInf, 3)
	img := Image(s)

	assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).A, "NaN is transparent")
	assert.Equal(t, uint8(0), img.NRGBAAt(0, 1).A, "-Inf is transparent")

	// Finite samples scale against finite min/max only.
	assert.Equal(t, color.NRGBA{0, 0, 0, 0xff}, img.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{0xff, 0xff, 0xff, 0xff}, img.NRGBAAt(1, 1))
}

func TestImage_FlatAndAllNoData(t *testing.T) {
	flat := Image(snap(t, 2, 7, 7, 7, 7))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			assert.Equal(t, color.NRGBA{0, 0, 0, 0xff}, flat.NRGBAAt(x, y))
		}
	}

	empty := Image(snap(t, 2, nan, nan, posInf, negInf))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			assert.Equal(t, uint8(0), empty.NRGBAAt(x, y).A)
		}
	}
}

func TestImage_Empty(t *testing.T) {
	assert.True(t, Image(nil).Bounds().Empty())
	assert.True(t, Image(snap(t, 0)).Bounds().Empty())
}

func TestRender_ScaleAndChecker(t *testing.T) {
	s := snap(t, 2, 0, 1, posInf, 1)
	img := Render(s, Options{Scale: 4, Checker: 2})

	require.Equal(t, 8, img.Bounds().Dx())

	// Sample (0,1) is no-data and covers pixels x 0..3, y 4..7.
	assert.Equal(t, checkerA, img.NRGBAAt(0, 4)) // tile (0,2)
	assert.Equal(t, checkerB, img.NRGBAAt(2, 4)) // tile (1,2)
	assert.Equal(t, checkerB, img.NRGBAAt(0, 6)) // tile (0,3)

	// Data pixels are untouched by the checkerboard.
	assert.Equal(t, color.NRGBA{0, 0, 0, 0xff}, img.NRGBAAt(3, 3))
}

func TestRender_NoOptionsIsImage(t *testing.T) {
	s := snap(t, 2, 0, 1, 2, 3)
	assert.Equal(t, Image(s), Render(s, Options{}))
}

func TestWritePNG(t *testing.T) {
	s := snap(t, 3, 0, 1, 2, 3, posInf, 5, 6, 7, 8)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, s, Options{Scale: 2}))

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 6, decoded.Bounds().Dx())
	assert.Equal(t, 6, decoded.Bounds().Dy())

	_, _, _, a := decoded.At(2, 2).RGBA()
	assert.Equal(t, uint32(0), a, "no-data stays transparent without a checkerboard")
}

func trueColorRenderer() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.TrueColor)
	return r
}

func TestTerminal_Shape(t *testing.T) {
	s := snap(t, 4,
		0, 1, 2, 3,
		4, 5, 6, 7,
		8, 9, 10, 11,
		12, 13, 14, 15)

	out := TerminalWith(trueColorRenderer(), s, 80)
	lines := strings.Split(out, "\n")

	// Four sample rows fold into two text rows of four cells.
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Equal(t, 4, lipgloss.Width(line))
		assert.Equal(t, 4, strings.Count(line, halfBlock))
	}
}

func TestTerminal_Downsamples(t *testing.T) {
	heights := make([]float32, 64*64)
	for i := range heights {
		heights[i] = float32(i)
	}
	s := snap(t, 64, heights...)

	out := TerminalWith(trueColorRenderer(), s, 16)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, 16, lipgloss.Width(lines[0]))
}

func TestTerminal_OddHeight(t *testing.T) {
	s := snap(t, 3, 0, 1, 2, 3, 4, 5, 6, 7, 8)

	lines := strings.Split(TerminalWith(trueColorRenderer(), s, 80), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, 3, lipgloss.Width(lines[1]))
}

func TestTerminal_Colors(t *testing.T) {
	s := snap(t, 2, 0, posInf, 10, 10)
	out := TerminalWith(trueColorRenderer(), s, 80)

	assert.Contains(t, out, "38;2;0;0;0", "black foreground for the minimum")
	assert.Contains(t, out, "48;2;255;255;255", "white background for the maximum")
	assert.Contains(t, out, "38;2;255;0;0", "checkerboard for +Inf")
}

func TestTerminal_Empty(t *testing.T) {
	assert.Equal(t, "", Terminal(nil, 80))
	assert.Equal(t, "", Terminal(snap(t, 2, 1, 2, 3, 4), 0))
}
