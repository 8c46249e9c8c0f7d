// Package sor implements the successive over-relaxation sweep applied to a
// local block once its ghost cells are current.
package sor

import (
	"fmt"
	"math"

	"github.com/sbromberger/jacobi/grid"
)

// Omega returns the relaxation factor used for a block nb cells wide.
func Omega(nb int) float64 {
	return 2.0 / (1.0 + math.Pi/float64(nb))
}

// Sweep writes one over-relaxed update of om into the interior of nm and
// returns the sum of squared differences between the two interiors.
//
// Cells are visited row by row, west to east. West and north neighbours are
// read from nm, east and south neighbours from om, so a cell sees the values
// already written earlier in the same sweep. nm's ghost cells are read but
// never written.
func Sweep(nm, om *grid.Block) float64 {
	if !nm.SameShape(om) {
		panic(fmt.Sprintf("sor: block shapes differ: %dx%d vs %dx%d", nm.NB(), nm.MB(), om.NB(), om.MB()))
	}
	nb, mb, s := om.NB(), om.MB(), om.Stride()
	w := Omega(nb)
	n, o := nm.Data(), om.Data()

	var norm float64
	for j := 0; j < mb; j++ {
		for i := 0; i < nb; i++ {
			pos := 1 + i + (j+1)*s
			n[pos] = (1-w)*o[pos] + w/4.0*(n[pos-1]+o[pos+1]+n[pos-s]+o[pos+s])
			d := n[pos] - o[pos]
			norm += d * d
		}
	}
	return norm
}
