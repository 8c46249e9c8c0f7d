package snapshot

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbromberger/jacobi/grid"
)

func TestColorize(t *testing.T) {
	tests := []struct {
		v    float64
		r, b uint8
	}{
		{-20, 0, 255},
		{-100, 0, 255},
		{20, 255, 0},
		{1e9, 255, 0},
		{0, 127, 128},
	}
	for _, tt := range tests {
		c := Colorize(tt.v)
		assert.Equal(t, color.RGBA{R: tt.r, G: 0, B: tt.b, A: 255}, c, "v=%g", tt.v)
	}
}

func TestName(t *testing.T) {
	assert.Equal(t, "rank_3_iteration_0042.png", Name(3, 42))
	assert.Equal(t, "rank_0_iteration_12345.png", Name(0, 12345))
}

func TestPNGSnapshot(t *testing.T) {
	b, err := grid.New(3, 2)
	require.NoError(t, err)
	b.FillGhosts(99, 99, 99, 99)
	b.Set(0, 0, -20)
	b.Set(2, 1, 20)

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, PNG{Dir: dir}.Snapshot(1, 7, b))

	img, err := imgio.Open(filepath.Join(dir, "rank_1_iteration_0007.png"))
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())

	r, _, bl, _ := img.At(0, 0).RGBA()
	assert.Zero(t, r)
	assert.Equal(t, uint32(0xffff), bl)
	r, _, bl, _ = img.At(2, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, bl)
}

func TestPNGSnapshotReportsIOErrors(t *testing.T) {
	b, err := grid.New(1, 1)
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, PNG{Dir: file}.Snapshot(0, 0, b))
}
