package jacobi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbromberger/jacobi/comm"
	"github.com/sbromberger/jacobi/comm/local"
)

func TestReduceTimings(t *testing.T) {
	w, err := local.NewWorld(3)
	require.NoError(t, err)

	got := make([]Timings, 3)
	require.NoError(t, w.Run(func(c comm.Communicator) error {
		elapsed := time.Duration(c.Rank()+1) * 250 * time.Microsecond
		tm, err := ReduceTimings(c, elapsed)
		got[c.Rank()] = tm
		return err
	}))
	assert.InDelta(t, 0.25, got[0].Min, 1e-12)
	assert.InDelta(t, 0.75, got[0].Max, 1e-12)
	assert.Equal(t, Timings{}, got[1])
	assert.Equal(t, Timings{}, got[2])
}

func TestTimingsString(t *testing.T) {
	tm := Timings{Min: 1.234, Max: 56.789}
	assert.Equal(t, "##### Measured Iteration Timings #####\n# MIN: 1.23 ms \t MAX: 56.79 ms", tm.String())
}
