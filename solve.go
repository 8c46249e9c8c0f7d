// Package jacobi solves the 2-D Laplace equation with successive
// over-relaxation on a grid distributed over a P×Q process grid.
//
// Every process owns one block. An iteration refreshes the block's ghost
// cells from its neighbours, sweeps the block and sums the squared change
// over all processes.
package jacobi

import (
	"math"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/sbromberger/jacobi/comm"
	"github.com/sbromberger/jacobi/grid"
	"github.com/sbromberger/jacobi/halo"
	"github.com/sbromberger/jacobi/sor"
	"github.com/sbromberger/jacobi/topology"
)

// Sink receives a block at the start of an iteration, before its ghost
// cells are refreshed. It must not keep b.
type Sink interface {
	Snapshot(rank, iter int, b *grid.Block) error
}

// Options controls a solve.
type Options struct {
	P, Q      int // process grid: P columns, Q rows
	MaxIter   int
	Epsilon   float64
	EarlyExit bool // stop once the global norm drops to Epsilon
	Snapshot  Sink // optional

	// Report, if set, is called on world rank 0 before every iteration with
	// the global norm of the previous one (zero before the first).
	Report func(iter int, norm float64)
}

func (o Options) validate() error {
	if o.P <= 0 || o.Q <= 0 {
		return errors.Wrapf(topology.ErrShape, "jacobi: %d×%d process grid", o.P, o.Q)
	}
	if o.MaxIter <= 0 {
		return errors.Errorf("jacobi: max iterations must be positive, got %d", o.MaxIter)
	}
	if o.Epsilon < 0 {
		return errors.Errorf("jacobi: negative epsilon %g", o.Epsilon)
	}
	return nil
}

// Result describes a finished solve.
type Result struct {
	Iterations int
	Norm       float64 // global norm of the last iteration
	Converged  bool    // stopped on Epsilon, only with EarlyExit
	Elapsed    time.Duration
}

// Solve iterates on b, which must have its global boundary values in its
// ghost cells, until MaxIter iterations have run or, with EarlyExit, the
// global norm reaches Epsilon. Every rank of world must call Solve with the
// same options and block shape. On success b holds the final state.
func Solve(world comm.Communicator, b *grid.Block, opts Options) (Result, error) {
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	top, err := topology.Build(world, opts.P, opts.Q)
	if err != nil {
		return Result{}, errors.Wrap(err, "jacobi: build topology")
	}
	defer func() {
		if err := top.Close(); err != nil {
			glog.Warningf("%d: release process groups: %v", world.Rank(), err)
		}
	}()

	rank := world.Rank()
	blocks := [2]*grid.Block{b, b.Clone()}
	cur := 0
	x := halo.New(top, b.NB(), b.MB())
	glog.V(1).Infof("%d: solving %dx%d block at row %d, col %d", rank, b.NB(), b.MB(), top.Row, top.Col)

	var res Result
	norm := 0.0
	start := time.Now()
	for {
		if opts.Report != nil && rank == 0 {
			opts.Report(res.Iterations, math.Sqrt(norm))
		}
		if opts.Snapshot != nil {
			if err := opts.Snapshot.Snapshot(rank, res.Iterations, blocks[cur]); err != nil {
				glog.Warningf("%d: snapshot of iteration %d: %v", rank, res.Iterations, err)
			}
		}

		if err := x.Exchange(blocks[cur]); err != nil {
			return res, errors.Wrapf(err, "jacobi: iteration %d", res.Iterations)
		}
		local := sor.Sweep(blocks[1-cur], blocks[cur])
		if norm, err = world.Allreduce(local, comm.OpSum); err != nil {
			return res, errors.Wrapf(err, "jacobi: iteration %d: reduce norm", res.Iterations)
		}
		cur = 1 - cur
		res.Iterations++
		glog.V(2).Infof("%d: iteration %d local %g global %g", rank, res.Iterations, local, norm)

		if opts.EarlyExit && math.Sqrt(norm) <= opts.Epsilon {
			res.Converged = true
			break
		}
		if res.Iterations >= opts.MaxIter {
			break
		}
	}
	res.Elapsed = time.Since(start)
	res.Norm = math.Sqrt(norm)

	if blocks[cur] != b {
		if err := b.CopyFrom(blocks[cur]); err != nil {
			return res, err
		}
	}
	return res, nil
}
