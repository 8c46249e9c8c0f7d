// Package topology arranges processes on a P×Q grid and builds the row and
// column communicators halo exchange runs on.
//
// Ranks are laid out row-major: rank r sits in column r%P of row r/P. The
// east-west group of a process holds the P ranks of its row; the north-south
// group holds the Q ranks of its column. Both are ordered by rank, so a
// process's index is its column in the first and its row in the second.
package topology

import (
	"github.com/pkg/errors"

	"github.com/sbromberger/jacobi/comm"
)

// ErrShape is returned when the process grid does not cover the communicator.
var ErrShape = errors.New("topology: process grid does not match communicator size")

// Coords returns the grid row and column of rank.
func Coords(rank, p int) (row, col int) {
	return rank / p, rank % p
}

// Members returns the ranks sharing rank's column (north-south group) and
// rank's row (east-west group), in increasing order.
func Members(rank, size, p int) (ns, ew []int) {
	row, col := Coords(rank, p)
	for r := col; r < size; r += p {
		ns = append(ns, r)
	}
	for r := row * p; r < (row+1)*p; r++ {
		ew = append(ew, r)
	}
	return ns, ew
}

// Check validates a p×q grid against a communicator size.
func Check(size, p, q int) error {
	if p <= 0 || q <= 0 || p*q != size {
		return errors.Wrapf(ErrShape, "%d×%d grid for %d processes", p, q, size)
	}
	return nil
}

// Topology is one process's view of the process grid.
type Topology struct {
	P, Q     int
	Row, Col int
	NS       comm.Communicator // same column, indexed by row
	EW       comm.Communicator // same row, indexed by column
}

// Build creates both groups. Every rank of world must call it.
func Build(world comm.Communicator, p, q int) (*Topology, error) {
	if err := Check(world.Size(), p, q); err != nil {
		return nil, err
	}
	ns, ew := Members(world.Rank(), world.Size(), p)
	t := &Topology{P: p, Q: q}
	t.Row, t.Col = Coords(world.Rank(), p)

	var err error
	if t.NS, err = world.Sub(ns); err != nil {
		return nil, errors.Wrap(err, "topology: north-south group")
	}
	if t.EW, err = world.Sub(ew); err != nil {
		t.NS.Close()
		return nil, errors.Wrap(err, "topology: east-west group")
	}
	return t, nil
}

// North returns the north neighbour's rank in NS.
func (t *Topology) North() (int, bool) { return t.Row - 1, t.Row > 0 }

// South returns the south neighbour's rank in NS.
func (t *Topology) South() (int, bool) { return t.Row + 1, t.Row < t.NS.Size()-1 }

// West returns the west neighbour's rank in EW.
func (t *Topology) West() (int, bool) { return t.Col - 1, t.Col > 0 }

// East returns the east neighbour's rank in EW.
func (t *Topology) East() (int, bool) { return t.Col + 1, t.Col < t.EW.Size()-1 }

// Close releases both groups.
func (t *Topology) Close() error {
	err := t.NS.Close()
	if err2 := t.EW.Close(); err == nil {
		err = err2
	}
	return err
}
