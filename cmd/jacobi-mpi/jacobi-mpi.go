// Command jacobi-mpi runs a solve under mpirun, one rank per MPI process.
package main

import (
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/sbromberger/jacobi/comm/mpi"
	"github.com/sbromberger/jacobi/config"
	"github.com/sbromberger/jacobi/internal/runner"
)

func main() {
	cfgPath := flag.String("config", "", "TOML settings file; flags override it")
	flags := config.Default()
	flags.Register(flag.CommandLine)
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.FromFlags(flag.CommandLine, *cfgPath)
	if err != nil {
		glog.Fatalf("%v", err)
	}

	mpi.Start()
	world := mpi.World()
	t0 := mpi.WorldTime()
	_, res, err := runner.Run(world, cfg, os.Stdout)
	if err != nil {
		// Peers may be blocked on this rank; take the whole job down.
		glog.Errorf("%d: %v", world.Rank(), err)
		glog.Flush()
		world.Abort(1)
		os.Exit(1)
	}
	glog.V(1).Infof("%d: %d iterations, %.3fs wall", world.Rank(), res.Iterations, mpi.WorldTime()-t0)
	mpi.Stop()
}
