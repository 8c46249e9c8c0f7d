// Command jacobi-rpc runs one rank of a solve. Ranks talk over gRPC; every
// process is started with the same -peers list and its own -rank.
package main

import (
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/sbromberger/jacobi/comm/rpc"
	"github.com/sbromberger/jacobi/config"
	"github.com/sbromberger/jacobi/internal/runner"
)

func main() {
	cfgPath := flag.String("config", "", "TOML settings file; flags override it")
	rank := flag.Int("rank", 0, "rank of this process; index into -peers")
	flags := config.Default()
	flags.Register(flag.CommandLine)
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.FromFlags(flag.CommandLine, *cfgPath)
	if err != nil {
		glog.Fatalf("%v", err)
	}
	if len(cfg.RPC.Peers) != cfg.Procs() {
		glog.Fatalf("%d peers given for a %d×%d process grid", len(cfg.RPC.Peers), cfg.P, cfg.Q)
	}

	n, err := rpc.Listen(*rank, cfg.RPC.Peers)
	if err != nil {
		glog.Fatalf("%v", err)
	}
	defer n.Close()
	world, err := n.World()
	if err != nil {
		glog.Fatalf("%v", err)
	}
	if _, _, err := runner.Run(world, cfg, os.Stdout); err != nil {
		glog.Fatalf("%d: %v", *rank, err)
	}
}
