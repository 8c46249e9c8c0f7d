// Command jacobi-local runs every rank of a solve as a goroutine in one
// process.
package main

import (
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/sbromberger/jacobi/comm"
	"github.com/sbromberger/jacobi/comm/local"
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
	w, err := local.NewWorld(cfg.Procs())
	if err != nil {
		glog.Fatalf("%v", err)
	}
	err = w.Run(func(c comm.Communicator) error {
		_, _, err := runner.Run(c, cfg, os.Stdout)
		return err
	})
	if err != nil {
		glog.Fatalf("%v", err)
	}
}
