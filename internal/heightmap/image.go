// Package heightmap renders heightfield snapshots as grayscale images:
// an image.Image for PNG output and a half-block string for terminals.
//
// Samples are normalized against the min and max of the finite samples.
// ±Inf and NaN samples carry no data and render transparent, or over a
// red and yellow checkerboard where the output has no alpha.
package heightmap

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/rileyhilliard/hfwatch/internal/terrain"
)

var (
	checkerA = color.NRGBA{R: 0xff, A: 0xff}
	checkerB = color.NRGBA{R: 0xff, G: 0xff, A: 0xff}
)

// DefaultTile is the checkerboard tile edge in pixels.
const DefaultTile = 10

// Gray returns the gray level of v on the [min, max] scale. Callers check
// for no-data first. A flat field (zero range) is black.
func Gray(v float32, st terrain.Stats) uint8 {
	r := st.Range()
	if r <= 0 {
		return 0
	}
	f := (float64(v) - float64(st.Min)) / r
	switch {
	case f <= 0:
		return 0
	case f >= 1:
		return 0xff
	}
	return uint8(f*0xff + 0.5)
}

// Image renders s at one pixel per sample. No-data samples are fully
// transparent. A nil or empty snapshot yields an empty image.
func Image(s *terrain.Snapshot) *image.NRGBA {
	if s.Empty() {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}

	st := s.Stats()
	img := image.NewNRGBA(image.Rect(0, 0, s.Size, s.Size))
	for y := 0; y < s.Size; y++ {
		for x := 0; x < s.Size; x++ {
			v := s.At(x, y)
			if terrain.IsNoData(v) {
				continue // zero value is transparent
			}
			g := Gray(v, st)
			img.SetNRGBA(x, y, color.NRGBA{R: g, G: g, B: g, A: 0xff})
		}
	}
	return img
}

// Options controls WritePNG.
type Options struct {
	// Scale repeats each sample Scale×Scale times. Values below 1 mean 1.
	Scale int

	// Checker paints the checkerboard under no-data pixels, with tiles of
	// this many output pixels. Zero leaves them transparent.
	Checker int
}

// Render draws s with opts applied.
func Render(s *terrain.Snapshot, opts Options) *image.NRGBA {
	src := Image(s)
	scale := max(opts.Scale, 1)
	if scale == 1 && opts.Checker <= 0 {
		return src
	}

	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	for y := 0; y < out.Rect.Dy(); y++ {
		for x := 0; x < out.Rect.Dx(); x++ {
			c := src.NRGBAAt(x/scale, y/scale)
			if c.A == 0 && opts.Checker > 0 {
				c = checkerAt(x, y, opts.Checker)
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// checkerAt is the background color at pixel (x, y), red on even tiles.
func checkerAt(x, y, tile int) color.NRGBA {
	if (x/tile+y/tile)%2 == 0 {
		return checkerA
	}
	return checkerB
}

// WritePNG encodes s as a PNG.
func WritePNG(w io.Writer, s *terrain.Snapshot, opts Options) error {
	return png.Encode(w, Render(s, opts))
}
