// Package snapshot writes block states out as PNG images.
package snapshot

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/pkg/errors"

	"github.com/sbromberger/jacobi/grid"
)

// DefaultDir is where PNG writes when Dir is empty.
const DefaultDir = "pngs"

// Range of values the colour ramp spans; values outside are clamped.
const (
	Low  = -20.0
	High = 20.0
)

// Colorize maps v onto a blue (Low) to red (High) ramp.
func Colorize(v float64) color.RGBA {
	t := (v - Low) / (High - Low)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	r := uint8(t * 255)
	return color.RGBA{R: r, G: 0, B: 255 - r, A: 255}
}

// Image renders the interior of b, one pixel per cell.
func Image(b *grid.Block) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.NB(), b.MB()))
	for j := 0; j < b.MB(); j++ {
		for i, v := range b.Row(j) {
			img.SetRGBA(i, j, Colorize(v))
		}
	}
	return img
}

// Name returns the file name of a snapshot.
func Name(rank, iter int) string {
	return fmt.Sprintf("rank_%d_iteration_%04d.png", rank, iter)
}

// PNG is a sink writing one image per rank and iteration into Dir.
type PNG struct {
	Dir string
}

func (p PNG) dir() string {
	if p.Dir == "" {
		return DefaultDir
	}
	return p.Dir
}

// Snapshot writes b's interior to Dir/rank_R_iteration_IIII.png.
func (p PNG) Snapshot(rank, iter int, b *grid.Block) error {
	if err := os.MkdirAll(p.dir(), 0o755); err != nil {
		return errors.Wrap(err, "snapshot: create directory")
	}
	path := filepath.Join(p.dir(), Name(rank, iter))
	return errors.Wrapf(imgio.Save(path, Image(b), imgio.PNGEncoder()), "snapshot: write %s", path)
}
