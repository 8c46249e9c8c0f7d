// Package comm defines the message-passing layer the solver runs on.
//
// A Communicator is an ordered set of ranks that exchange float64 vectors
// point to point and combine scalars collectively. Every rank of a
// communicator must take part in its collective calls, in the same order,
// or the whole group blocks. There are no timeouts.
package comm

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Op is a reduction operator.
type Op uint8

const (
	OpSum Op = iota // Sum
	OpMin           // Min
	OpMax           // Max
)

func (op Op) String() string {
	switch op {
	case OpSum:
		return "sum"
	case OpMin:
		return "min"
	case OpMax:
		return "max"
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// Combine reduces vals with op. vals must not be empty.
func (op Op) Combine(vals []float64) float64 {
	switch op {
	case OpSum:
		return floats.Sum(vals)
	case OpMin:
		return floats.Min(vals)
	case OpMax:
		return floats.Max(vals)
	}
	panic("comm: unknown reduction " + op.String())
}

var (
	// ErrLength is returned when a message does not fit the receive buffer.
	ErrLength = errors.New("comm: message length mismatch")
	// ErrRank is returned for a peer rank outside the communicator.
	ErrRank = errors.New("comm: rank out of range")
	// ErrClosed is returned by calls on a released communicator.
	ErrClosed = errors.New("comm: communicator closed")
)

// Communicator is implemented by every transport.
type Communicator interface {
	// Rank returns the caller's position in the communicator.
	Rank() int
	// Size returns the number of ranks.
	Size() int
	// Send blocks until buf has been handed to the transport. buf may be
	// reused as soon as Send returns.
	Send(buf []float64, dest, tag int) error
	// Recv blocks until a message from src with tag arrives and copies it
	// into buf. Messages on the same (src, tag) pair arrive in send order.
	Recv(buf []float64, src, tag int) error
	// Allreduce combines v over all ranks; every rank gets the result.
	Allreduce(v float64, op Op) (float64, error)
	// Reduce combines v over all ranks; the result is only meaningful on
	// root, other ranks get zero.
	Reduce(v float64, op Op, root int) (float64, error)
	// Sub returns a communicator over the given ranks of this one, which
	// must be sorted and include the caller. Members of the new
	// communicator are ordered as listed.
	Sub(ranks []int) (Communicator, error)
	// Close releases the communicator.
	Close() error
}

// Serialized is implemented by communicators that must only be called from
// one goroutine at a time, such as MPI initialized without thread support.
type Serialized interface {
	Serialized() bool
}

// IsSerialized reports whether c needs its calls issued one at a time.
func IsSerialized(c Communicator) bool {
	s, ok := c.(Serialized)
	return ok && s.Serialized()
}

// CheckMembers validates a Sub member list against a communicator of the
// given size and returns the caller's index in it.
func CheckMembers(ranks []int, self, size int) (int, error) {
	idx := -1
	for k, r := range ranks {
		if r < 0 || r >= size {
			return -1, errors.Wrapf(ErrRank, "member %d of %d", r, size)
		}
		if k > 0 && r <= ranks[k-1] {
			return -1, errors.Errorf("comm: members not strictly increasing: %v", ranks)
		}
		if r == self {
			idx = k
		}
	}
	if idx < 0 {
		return -1, errors.Errorf("comm: rank %d is not a member of %v", self, ranks)
	}
	return idx, nil
}
