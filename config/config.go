// Package config holds the settings shared by the solver commands. Values
// come from defaults, then an optional TOML file, then command-line flags.
package config

import (
	"flag"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Boundary holds the fixed values on the four edges of the global grid.
type Boundary struct {
	North float64 `toml:"north"`
	South float64 `toml:"south"`
	East  float64 `toml:"east"`
	West  float64 `toml:"west"`
}

// RPC configures the gRPC transport.
type RPC struct {
	Peers []string `toml:"peers"` // listen address of every rank, by rank
}

// Config describes one run.
type Config struct {
	NB          int      `toml:"nb"` // block width per process
	MB          int      `toml:"mb"` // block height per process
	P           int      `toml:"p"`  // process columns
	Q           int      `toml:"q"`  // process rows
	MaxIter     int      `toml:"max_iter"`
	Epsilon     float64  `toml:"epsilon"`
	EarlyExit   bool     `toml:"early_exit"`
	Snapshot    bool     `toml:"snapshot"`
	SnapshotDir string   `toml:"snapshot_dir"`
	Boundary    Boundary `toml:"boundary"`
	RPC         RPC      `toml:"rpc"`
}

// Default returns a 64×64 block on one process with a hot north edge.
func Default() Config {
	return Config{
		NB:          64,
		MB:          64,
		P:           1,
		Q:           1,
		MaxIter:     100,
		Epsilon:     1e-6,
		SnapshotDir: "pngs",
		Boundary:    Boundary{North: 10},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	c := Default()
	f, err := os.Open(path)
	if err != nil {
		return c, errors.Wrap(err, "config")
	}
	defer f.Close()
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&c); err != nil {
		return c, errors.Wrapf(err, "config: decode %s", path)
	}
	return c, nil
}

// Validate rejects settings no run can use.
func (c Config) Validate() error {
	for _, f := range []struct {
		name string
		v    int
	}{{"nb", c.NB}, {"mb", c.MB}, {"p", c.P}, {"q", c.Q}, {"max_iter", c.MaxIter}} {
		if f.v <= 0 {
			return errors.Errorf("config: %s must be positive, got %d", f.name, f.v)
		}
	}
	if c.Epsilon < 0 {
		return errors.Errorf("config: epsilon must not be negative, got %g", c.Epsilon)
	}
	return nil
}

// Procs returns the number of processes the run needs.
func (c Config) Procs() int { return c.P * c.Q }

type peerList struct{ p *[]string }

func (l peerList) String() string {
	if l.p == nil {
		return ""
	}
	return strings.Join(*l.p, ",")
}

func (l peerList) Set(s string) error {
	*l.p = nil
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			*l.p = append(*l.p, a)
		}
	}
	return nil
}

// Register defines a flag for every setting on fs, bound to c.
func (c *Config) Register(fs *flag.FlagSet) {
	fs.IntVar(&c.NB, "nb", c.NB, "block width per process")
	fs.IntVar(&c.MB, "mb", c.MB, "block height per process")
	fs.IntVar(&c.P, "p", c.P, "process columns")
	fs.IntVar(&c.Q, "q", c.Q, "process rows")
	fs.IntVar(&c.MaxIter, "max-iter", c.MaxIter, "number of iterations")
	fs.Float64Var(&c.Epsilon, "epsilon", c.Epsilon, "convergence threshold on the global norm")
	fs.BoolVar(&c.EarlyExit, "early-exit", c.EarlyExit, "stop once the norm reaches epsilon")
	fs.BoolVar(&c.Snapshot, "snapshot", c.Snapshot, "write a PNG of every block at every iteration")
	fs.StringVar(&c.SnapshotDir, "snapshot-dir", c.SnapshotDir, "directory for PNG snapshots")
	fs.Float64Var(&c.Boundary.North, "north", c.Boundary.North, "north boundary value")
	fs.Float64Var(&c.Boundary.South, "south", c.Boundary.South, "south boundary value")
	fs.Float64Var(&c.Boundary.East, "east", c.Boundary.East, "east boundary value")
	fs.Float64Var(&c.Boundary.West, "west", c.Boundary.West, "west boundary value")
	fs.Var(peerList{&c.RPC.Peers}, "peers", "comma-separated listen address of every rank")
}

// Apply copies the flags explicitly set on fs into c. fs must have been
// parsed; flags it holds that are not settings are ignored.
func Apply(fs *flag.FlagSet, c *Config) error {
	bound := flag.NewFlagSet("settings", flag.ContinueOnError)
	c.Register(bound)
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil || bound.Lookup(f.Name) == nil {
			return
		}
		err = errors.Wrapf(bound.Set(f.Name, f.Value.String()), "config: flag -%s", f.Name)
	})
	return err
}

// FromFlags builds the configuration of a command: defaults, then the file
// named by path if any, then the flags set on fs.
func FromFlags(fs *flag.FlagSet, path string) (Config, error) {
	c := Default()
	if path != "" {
		var err error
		if c, err = Load(path); err != nil {
			return c, err
		}
	}
	if err := Apply(fs, &c); err != nil {
		return c, err
	}
	return c, c.Validate()
}
