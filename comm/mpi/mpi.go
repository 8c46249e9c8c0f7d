// Package mpi runs communicators on an MPI library through gompi.
//
// Start must be called once before World and Stop once after every
// communicator is done, both from the main goroutine. gompi initializes MPI
// without thread support, so every call goes through the thread Start
// locked and Comm reports itself serialized to callers that would otherwise
// overlap sends and receives.
package mpi

import (
	"runtime"

	"github.com/pkg/errors"
	gompi "github.com/sbromberger/gompi"

	"github.com/sbromberger/jacobi/comm"
)

// Start pins the calling goroutine to its thread and initializes MPI.
func Start() {
	runtime.LockOSThread()
	gompi.Start()
}

// Stop finalizes MPI.
func Stop() { gompi.Stop() }

// WorldTime returns MPI's wall clock in seconds.
func WorldTime() float64 { return gompi.WorldTime() }

// Comm wraps a gompi communicator.
type Comm struct {
	o       gompi.Communicator
	members []int // world ranks, indexed by rank in o
}

// World returns the communicator over all MPI processes.
func World() *Comm {
	o := gompi.NewCommunicator(nil)
	members := make([]int, o.Size())
	for r := range members {
		members[r] = r
	}
	return &Comm{o: o, members: members}
}

func (c *Comm) Rank() int { return c.o.Rank() }

func (c *Comm) Size() int { return c.o.Size() }

// Serialized reports that calls must be issued one at a time.
func (c *Comm) Serialized() bool { return true }

// Abort terminates every process of the communicator with code.
func (c *Comm) Abort(code int) { c.o.Abort(code) }

func (c *Comm) checkPeer(r int) error {
	if r < 0 || r >= len(c.members) {
		return errors.Wrapf(comm.ErrRank, "mpi: peer %d of %d", r, len(c.members))
	}
	return nil
}

func (c *Comm) Send(buf []float64, dest, tag int) error {
	if err := c.checkPeer(dest); err != nil {
		return err
	}
	if len(buf) == 0 {
		return errors.Wrapf(comm.ErrLength, "mpi: empty send to %d tag %d", dest, tag)
	}
	c.o.SendFloat64s(buf, dest, tag)
	return nil
}

// Recv checks the length of the pending message first so a mismatch is reported
// instead of truncating.
func (c *Comm) Recv(buf []float64, src, tag int) error {
	if err := c.checkPeer(src); err != nil {
		return err
	}
	if n := c.o.Probe(src, tag).GetCount(gompi.Double); n != len(buf) || n == 0 {
		return errors.Wrapf(comm.ErrLength, "mpi: recv from %d tag %d: got %d values, want %d", src, tag, n, len(buf))
	}
	c.o.RecvPreallocFloat64s(buf, src, tag)
	return nil
}

func mpiOp(op comm.Op) (gompi.Op, error) {
	switch op {
	case comm.OpSum:
		return gompi.OpSum, nil
	case comm.OpMin:
		return gompi.OpMin, nil
	case comm.OpMax:
		return gompi.OpMax, nil
	}
	return gompi.OpSum, errors.Errorf("mpi: unsupported reduction %s", op)
}

func (c *Comm) Allreduce(v float64, op comm.Op) (float64, error) {
	o, err := mpiOp(op)
	if err != nil {
		return 0, err
	}
	dest := make([]float64, 1)
	if err := c.o.AllreduceFloat64s(dest, []float64{v}, o, 0); err != nil {
		return 0, errors.Wrapf(err, "mpi: allreduce %s", op)
	}
	return dest[0], nil
}

func (c *Comm) Reduce(v float64, op comm.Op, root int) (float64, error) {
	if err := c.checkPeer(root); err != nil {
		return 0, err
	}
	o, err := mpiOp(op)
	if err != nil {
		return 0, err
	}
	dest := make([]float64, 1)
	if err := c.o.ReduceFloat64s(dest, []float64{v}, o, root); err != nil {
		return 0, errors.Wrapf(err, "mpi: reduce %s to %d", op, root)
	}
	if c.Rank() != root {
		return 0, nil
	}
	return dest[0], nil
}

// Sub creates a communicator from ranks of c. Every process must call Sub
// at the same point; member lists passed by different processes must be
// equal or disjoint.
func (c *Comm) Sub(ranks []int) (comm.Communicator, error) {
	if _, err := comm.CheckMembers(ranks, c.Rank(), len(c.members)); err != nil {
		return nil, err
	}
	members := make([]int, len(ranks))
	for k, r := range ranks {
		members[k] = c.members[r]
	}
	return &Comm{o: gompi.NewCommunicator(members), members: members}, nil
}

// Close is a no-op. gompi has no way to free a communicator, so they all
// live until Stop.
func (c *Comm) Close() error { return nil }
