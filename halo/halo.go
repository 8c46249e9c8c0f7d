// Package halo refreshes the ghost cells of a block from its grid
// neighbours.
package halo

import (
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sbromberger/jacobi/comm"
	"github.com/sbromberger/jacobi/grid"
	"github.com/sbromberger/jacobi/topology"
)

const tag = 0

// Exchanger owns the column scratch strips for one block shape. It is not
// safe for concurrent use.
type Exchanger struct {
	top          *topology.Topology
	nb, mb       int
	sendW, sendE []float64
	recvW, recvE []float64
}

// New returns an Exchanger for nb×mb blocks laid out on top.
func New(top *topology.Topology, nb, mb int) *Exchanger {
	return &Exchanger{
		top:   top,
		nb:    nb,
		mb:    mb,
		sendW: make([]float64, mb),
		sendE: make([]float64, mb),
		recvW: make([]float64, mb),
		recvE: make([]float64, mb),
	}
}

// Exchange sends the outermost interior rows and columns of b to the
// neighbours and fills b's ghost cells with theirs. Ghost cells on a side
// without a neighbour are left alone. All transfers run concurrently and
// Exchange returns once every one of them has finished, unless either group
// is serialized; then transfers are issued one at a time in an order that
// pairs every send with a posted receive.
func (x *Exchanger) Exchange(b *grid.Block) error {
	if b.NB() != x.nb || b.MB() != x.mb {
		return errors.Errorf("halo: %dx%d block, exchanger built for %dx%d", b.NB(), b.MB(), x.nb, x.mb)
	}
	ns, ew := x.lines(b)
	if ew.hasPrev {
		b.PackColumn(0, x.sendW)
	}
	if ew.hasNext {
		b.PackColumn(x.nb-1, x.sendE)
	}

	var err error
	if comm.IsSerialized(ns.c) || comm.IsSerialized(ew.c) {
		if err = ns.pairwise(); err == nil {
			err = ew.pairwise()
		}
	} else {
		var g errgroup.Group
		ns.postRecv(&g)
		ew.postRecv(&g)
		ns.postSend(&g)
		ew.postSend(&g)
		err = g.Wait()
	}
	if err != nil {
		return err
	}

	if ew.hasPrev {
		b.UnpackColumn(-1, x.recvW)
	}
	if ew.hasNext {
		b.UnpackColumn(x.nb, x.recvE)
	}
	return nil
}

// line is a process and its two neighbours along one axis: prev is north or
// west, next is south or east.
type line struct {
	c                  comm.Communicator
	self               int
	prev, next         int
	hasPrev, hasNext   bool
	prevDir, nextDir   string
	sendPrev, sendNext []float64
	recvPrev, recvNext []float64
}

func (x *Exchanger) lines(b *grid.Block) (ns, ew line) {
	t := x.top
	ns = line{
		c: t.NS, self: t.Row, prevDir: "north", nextDir: "south",
		sendPrev: b.Row(0), sendNext: b.Row(x.mb - 1),
		recvPrev: b.Row(-1), recvNext: b.Row(x.mb),
	}
	ns.prev, ns.hasPrev = t.North()
	ns.next, ns.hasNext = t.South()
	ew = line{
		c: t.EW, self: t.Col, prevDir: "west", nextDir: "east",
		sendPrev: x.sendW, sendNext: x.sendE,
		recvPrev: x.recvW, recvNext: x.recvE,
	}
	ew.prev, ew.hasPrev = t.West()
	ew.next, ew.hasNext = t.East()
	return ns, ew
}

func (l line) send(buf []float64, to int, dir string) error {
	return errors.Wrapf(l.c.Send(buf, to, tag), "halo: send %s", dir)
}

func (l line) recv(buf []float64, from int, dir string) error {
	return errors.Wrapf(l.c.Recv(buf, from, tag), "halo: receive from %s", dir)
}

func (l line) postRecv(g *errgroup.Group) {
	if l.hasPrev {
		g.Go(func() error { return l.recv(l.recvPrev, l.prev, l.prevDir) })
	}
	if l.hasNext {
		g.Go(func() error { return l.recv(l.recvNext, l.next, l.nextDir) })
	}
}

func (l line) postSend(g *errgroup.Group) {
	if l.hasPrev {
		g.Go(func() error { return l.send(l.sendPrev, l.prev, l.prevDir) })
	}
	if l.hasNext {
		g.Go(func() error { return l.send(l.sendNext, l.next, l.nextDir) })
	}
}

// pairwise exchanges with both neighbours from the calling goroutine. Even
// positions talk to next first and odd ones to prev first; within a pair the
// lower position sends first.
func (l line) pairwise() error {
	withNext := func() error {
		if !l.hasNext {
			return nil
		}
		if err := l.send(l.sendNext, l.next, l.nextDir); err != nil {
			return err
		}
		return l.recv(l.recvNext, l.next, l.nextDir)
	}
	withPrev := func() error {
		if !l.hasPrev {
			return nil
		}
		if err := l.recv(l.recvPrev, l.prev, l.prevDir); err != nil {
			return err
		}
		return l.send(l.sendPrev, l.prev, l.prevDir)
	}
	first, second := withNext, withPrev
	if l.self%2 == 1 {
		first, second = withPrev, withNext
	}
	if err := first(); err != nil {
		return err
	}
	return second()
}
