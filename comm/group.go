package comm

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Tags below zero are reserved for collectives.
const (
	tagReduce = -1 - iota
	tagBcast
)

// Transport moves envelopes between world ranks. Deliver must preserve the
// order of envelopes sent on the same Key.
type Transport interface {
	// Deliver hands e to the mailbox of world rank dst.
	Deliver(dst int, e Envelope) error
	// Collect blocks until an envelope for k reaches the local mailbox.
	Collect(k Key) ([]float64, error)
}

// Group is a Communicator built on point-to-point delivery. Collectives are
// linear: every rank reports to the root in rank order and the root
// broadcasts the result, so reductions are deterministic for a fixed size.
type Group struct {
	t       Transport
	id      string
	members []int // world ranks, indexed by group rank
	rank    int
	closed  atomic.Bool
}

// NewWorld returns the communicator spanning all size world ranks.
func NewWorld(t Transport, rank, size int) (*Group, error) {
	if size <= 0 || rank < 0 || rank >= size {
		return nil, errors.Wrapf(ErrRank, "rank %d of %d", rank, size)
	}
	members := make([]int, size)
	for r := range members {
		members[r] = r
	}
	return &Group{t: t, id: "world", members: members, rank: rank}, nil
}

// ID returns the identity shared by every member of the group.
func (g *Group) ID() string { return g.id }

func (g *Group) Rank() int { return g.rank }

func (g *Group) Size() int { return len(g.members) }

// WorldRank translates a group rank to a world rank.
func (g *Group) WorldRank(r int) int { return g.members[r] }

func (g *Group) Send(buf []float64, dest, tag int) error {
	if tag < 0 {
		return errors.Errorf("comm: negative tag %d is reserved", tag)
	}
	return g.send(buf, dest, tag)
}

func (g *Group) send(buf []float64, dest, tag int) error {
	if g.closed.Load() {
		return ErrClosed
	}
	if dest < 0 || dest >= len(g.members) {
		return errors.Wrapf(ErrRank, "send to %d of %d", dest, len(g.members))
	}
	data := make([]float64, len(buf))
	copy(data, buf)
	e := Envelope{Key: Key{Comm: g.id, Src: g.rank, Dst: dest, Tag: tag}, Data: data}
	return errors.Wrapf(g.t.Deliver(g.members[dest], e), "send %s", e.Key)
}

func (g *Group) Recv(buf []float64, src, tag int) error {
	if tag < 0 {
		return errors.Errorf("comm: negative tag %d is reserved", tag)
	}
	return g.recv(buf, src, tag)
}

func (g *Group) recv(buf []float64, src, tag int) error {
	if g.closed.Load() {
		return ErrClosed
	}
	if src < 0 || src >= len(g.members) {
		return errors.Wrapf(ErrRank, "recv from %d of %d", src, len(g.members))
	}
	k := Key{Comm: g.id, Src: src, Dst: g.rank, Tag: tag}
	data, err := g.t.Collect(k)
	if err != nil {
		return errors.Wrapf(err, "recv %s", k)
	}
	if len(data) != len(buf) {
		return errors.Wrapf(ErrLength, "recv %s: got %d values, want %d", k, len(data), len(buf))
	}
	copy(buf, data)
	return nil
}

func (g *Group) Reduce(v float64, op Op, root int) (float64, error) {
	if root < 0 || root >= len(g.members) {
		return 0, errors.Wrapf(ErrRank, "reduce root %d of %d", root, len(g.members))
	}
	one := []float64{v}
	if g.rank != root {
		return 0, g.send(one, root, tagReduce)
	}
	vals := make([]float64, len(g.members))
	for r := range vals {
		if r == root {
			vals[r] = v
			continue
		}
		if err := g.recv(one, r, tagReduce); err != nil {
			return 0, err
		}
		vals[r] = one[0]
	}
	return op.Combine(vals), nil
}

func (g *Group) Allreduce(v float64, op Op) (float64, error) {
	res, err := g.Reduce(v, op, 0)
	if err != nil {
		return 0, err
	}
	one := []float64{res}
	if g.rank == 0 {
		for r := 1; r < len(g.members); r++ {
			if err := g.send(one, r, tagBcast); err != nil {
				return 0, err
			}
		}
		return res, nil
	}
	if err := g.recv(one, 0, tagBcast); err != nil {
		return 0, err
	}
	return one[0], nil
}

// Sub creates a child group. The child's identity is derived from this
// group's identity and the member list, so all members agree on it without
// exchanging messages.
func (g *Group) Sub(ranks []int) (Communicator, error) {
	if g.closed.Load() {
		return nil, ErrClosed
	}
	idx, err := CheckMembers(ranks, g.rank, len(g.members))
	if err != nil {
		return nil, err
	}
	members := make([]int, len(ranks))
	names := make([]string, len(ranks))
	for k, r := range ranks {
		members[k] = g.members[r]
		names[k] = strconv.Itoa(members[k])
	}
	id := g.id + "/" + strings.Join(names, ",")
	return &Group{t: g.t, id: id, members: members, rank: idx}, nil
}

func (g *Group) Close() error {
	if g.closed.Swap(true) {
		return ErrClosed
	}
	return nil
}
