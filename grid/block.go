// Package grid provides the padded local block owned by one process.
//
// A Block holds an NB x MB interior surrounded by a one-cell ghost border,
// stored row-major in a single (NB+2) x (MB+2) buffer. Interior coordinate
// (i, j) lives at 1 + i + (j+1)*(NB+2). Ghost cells are addressed with
// i = -1 (west), i = NB (east), j = -1 (north) and j = MB (south).
package grid

import (
	"fmt"

	"github.com/pkg/errors"
)

// Block is a padded 2-D view that owns its buffer.
type Block struct {
	nb, mb int
	data   []float64
}

// New returns a zeroed block with an nb x mb interior.
func New(nb, mb int) (*Block, error) {
	if nb <= 0 || mb <= 0 {
		return nil, errors.Errorf("grid: invalid interior %dx%d", nb, mb)
	}
	return &Block{nb: nb, mb: mb, data: make([]float64, (nb+2)*(mb+2))}, nil
}

// NB returns the interior width (cells per row).
func (b *Block) NB() int { return b.nb }

// MB returns the interior height (number of rows).
func (b *Block) MB() int { return b.mb }

// Stride returns the padded row length.
func (b *Block) Stride() int { return b.nb + 2 }

// Data returns the raw padded buffer. Callers indexing it directly are
// responsible for respecting the layout.
func (b *Block) Data() []float64 { return b.data }

// Pos maps (i, j), ghost coordinates included, to an offset in Data.
func (b *Block) Pos(i, j int) int {
	if i < -1 || i > b.nb || j < -1 || j > b.mb {
		panic(fmt.Sprintf("grid: (%d, %d) outside %dx%d block", i, j, b.nb, b.mb))
	}
	return 1 + i + (j+1)*(b.nb+2)
}

// At returns the value at (i, j).
func (b *Block) At(i, j int) float64 {
	return b.data[b.Pos(i, j)]
}

// Set stores v at (i, j).
func (b *Block) Set(i, j int, v float64) {
	b.data[b.Pos(i, j)] = v
}

// Row returns the nb cells of row j, ghost columns excluded. The slice
// aliases the block: j = -1 is the north ghost row, j = MB the south one.
func (b *Block) Row(j int) []float64 {
	p := b.Pos(0, j)
	return b.data[p : p+b.nb : p+b.nb]
}

// PackColumn copies column i of every interior row into dst.
func (b *Block) PackColumn(i int, dst []float64) {
	if len(dst) != b.mb {
		panic(fmt.Sprintf("grid: column buffer has %d cells, want %d", len(dst), b.mb))
	}
	p, s := b.Pos(i, 0), b.Stride()
	for j := range dst {
		dst[j] = b.data[p+j*s]
	}
}

// UnpackColumn writes src into column i of every interior row.
func (b *Block) UnpackColumn(i int, src []float64) {
	if len(src) != b.mb {
		panic(fmt.Sprintf("grid: column buffer has %d cells, want %d", len(src), b.mb))
	}
	p, s := b.Pos(i, 0), b.Stride()
	for j, v := range src {
		b.data[p+j*s] = v
	}
}

// SameShape reports whether o has the same interior dimensions as b.
func (b *Block) SameShape(o *Block) bool {
	return b.nb == o.nb && b.mb == o.mb
}

// Clone returns a deep copy of b, ghost cells included.
func (b *Block) Clone() *Block {
	c := &Block{nb: b.nb, mb: b.mb, data: make([]float64, len(b.data))}
	copy(c.data, b.data)
	return c
}

// CopyFrom overwrites b, ghost cells included, with the contents of o.
func (b *Block) CopyFrom(o *Block) error {
	if !b.SameShape(o) {
		return errors.Errorf("grid: cannot copy %dx%d block into %dx%d", o.nb, o.mb, b.nb, b.mb)
	}
	copy(b.data, o.data)
	return nil
}

// FillInterior sets every interior cell to v.
func (b *Block) FillInterior(v float64) {
	for j := 0; j < b.mb; j++ {
		row := b.Row(j)
		for i := range row {
			row[i] = v
		}
	}
}

// FillGhosts sets the four ghost borders (corners excluded) to the given
// values.
func (b *Block) FillGhosts(north, south, east, west float64) {
	for _, r := range []struct {
		j int
		v float64
	}{{-1, north}, {b.mb, south}} {
		row := b.Row(r.j)
		for i := range row {
			row[i] = r.v
		}
	}
	for j := 0; j < b.mb; j++ {
		b.Set(-1, j, west)
		b.Set(b.nb, j, east)
	}
}

// String renders the interior one row per line.
func (b *Block) String() string {
	var s string
	for j := 0; j < b.mb; j++ {
		s += fmt.Sprintln(b.Row(j))
	}
	return s
}
