package jacobi

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/sbromberger/jacobi/comm"
)

// Timings holds the fastest and slowest per-process loop time, in
// milliseconds. Only rank 0 of the reducing communicator gets real values.
type Timings struct {
	Min, Max float64
}

func (t Timings) String() string {
	return fmt.Sprintf("##### Measured Iteration Timings #####\n# MIN: %.2f ms \t MAX: %.2f ms", t.Min, t.Max)
}

// ReduceTimings collects elapsed from every rank of c at rank 0.
func ReduceTimings(c comm.Communicator, elapsed time.Duration) (Timings, error) {
	ms := float64(elapsed) / float64(time.Millisecond)
	var t Timings
	var err error
	if t.Min, err = c.Reduce(ms, comm.OpMin, 0); err != nil {
		return t, errors.Wrap(err, "jacobi: reduce min timing")
	}
	if t.Max, err = c.Reduce(ms, comm.OpMax, 0); err != nil {
		return t, errors.Wrap(err, "jacobi: reduce max timing")
	}
	return t, nil
}
