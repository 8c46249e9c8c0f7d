// Package local runs a set of ranks as goroutines inside one process. All
// ranks share a single mailbox, so messages never leave memory.
package local

import (
	"github.com/pkg/errors"

	"github.com/sbromberger/jacobi/comm"
)

// World is an in-process communicator universe of a fixed size.
type World struct {
	size int
	mb   *comm.Mailbox
}

// NewWorld returns a World with size ranks.
func NewWorld(size int) (*World, error) {
	if size <= 0 {
		return nil, errors.Errorf("local: invalid world size %d", size)
	}
	return &World{size: size, mb: comm.NewMailbox()}, nil
}

// Size returns the number of ranks.
func (w *World) Size() int { return w.size }

// Pending returns the number of messages sent but not yet received.
func (w *World) Pending() int { return w.mb.Pending() }

// Comm returns the world communicator as seen by rank.
func (w *World) Comm(rank int) (*comm.Group, error) {
	return comm.NewWorld(transport{w}, rank, w.size)
}

// Run calls fn once per rank, each in its own goroutine, and waits for all
// of them. The first error is returned as soon as it is seen; ranks still
// blocked on a peer that failed are abandoned.
func (w *World) Run(fn func(c comm.Communicator) error) error {
	errc := make(chan error, w.size)
	for r := 0; r < w.size; r++ {
		c, err := w.Comm(r)
		if err != nil {
			return err
		}
		go func(r int, c comm.Communicator) {
			errc <- errors.Wrapf(fn(c), "rank %d", r)
		}(r, c)
	}
	for i := 0; i < w.size; i++ {
		if err := <-errc; err != nil {
			return err
		}
	}
	return nil
}

type transport struct {
	w *World
}

func (t transport) Deliver(dst int, e comm.Envelope) error {
	if dst < 0 || dst >= t.w.size {
		return errors.Wrapf(comm.ErrRank, "deliver to %d", dst)
	}
	t.w.mb.Put(e.Key, e.Data)
	return nil
}

func (t transport) Collect(k comm.Key) ([]float64, error) {
	return t.w.mb.Take(k), nil
}
