// Package runner sets up and runs a heat-plate problem for the commands.
package runner

import (
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/sbromberger/jacobi"
	"github.com/sbromberger/jacobi/comm"
	"github.com/sbromberger/jacobi/config"
	"github.com/sbromberger/jacobi/grid"
	"github.com/sbromberger/jacobi/snapshot"
	"github.com/sbromberger/jacobi/topology"
)

// ApplyBoundary writes the global boundary values into the ghost cells of a
// block that lies on the edge of the p×q process grid. Ghost cells facing a
// neighbour are zeroed; the halo exchange fills them.
func ApplyBoundary(b *grid.Block, rank, p, q int, bnd config.Boundary) {
	row, col := topology.Coords(rank, p)
	var n, s, e, w float64
	if row == 0 {
		n = bnd.North
	}
	if row == q-1 {
		s = bnd.South
	}
	if col == 0 {
		w = bnd.West
	}
	if col == p-1 {
		e = bnd.East
	}
	b.FillGhosts(n, s, e, w)
}

// Run solves cfg on world. Rank 0 writes progress and timings to out.
// The returned block is the caller's final state.
func Run(world comm.Communicator, cfg config.Config, out io.Writer) (*grid.Block, jacobi.Result, error) {
	rank := world.Rank()
	if err := cfg.Validate(); err != nil {
		return nil, jacobi.Result{}, err
	}
	if world.Size() != cfg.Procs() {
		return nil, jacobi.Result{}, errors.Wrapf(topology.ErrShape,
			"runner: %d×%d grid needs %d processes, have %d", cfg.P, cfg.Q, cfg.Procs(), world.Size())
	}
	b, err := grid.New(cfg.NB, cfg.MB)
	if err != nil {
		return nil, jacobi.Result{}, err
	}
	ApplyBoundary(b, rank, cfg.P, cfg.Q, cfg.Boundary)

	opts := jacobi.Options{
		P:         cfg.P,
		Q:         cfg.Q,
		MaxIter:   cfg.MaxIter,
		Epsilon:   cfg.Epsilon,
		EarlyExit: cfg.EarlyExit,
		Report: func(iter int, norm float64) {
			fmt.Fprintf(out, "Iteration %d: diff_norm = %f, epsilon = %f\n", iter, norm, cfg.Epsilon)
		},
	}
	if cfg.Snapshot {
		opts.Snapshot = snapshot.PNG{Dir: cfg.SnapshotDir}
	}

	glog.Infof("%d: starting %d iterations on a %dx%d block", rank, cfg.MaxIter, cfg.NB, cfg.MB)
	res, err := jacobi.Solve(world, b, opts)
	if err != nil {
		return b, res, err
	}
	glog.Infof("%d: finished after %d iterations, norm %g, in %v", rank, res.Iterations, res.Norm, res.Elapsed)

	t, err := jacobi.ReduceTimings(world, res.Elapsed)
	if err != nil {
		return b, res, err
	}
	if rank == 0 {
		fmt.Fprintln(out, t)
	}
	return b, res, nil
}
