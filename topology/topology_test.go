package topology

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbromberger/jacobi/comm"
	"github.com/sbromberger/jacobi/comm/local"
)

func TestMembers(t *testing.T) {
	tests := []struct {
		rank, size, p int
		ns, ew        []int
	}{
		{0, 1, 1, []int{0}, []int{0}},
		{3, 4, 2, []int{1, 3}, []int{2, 3}},
		{4, 6, 3, []int{1, 4}, []int{3, 4, 5}},
		{2, 6, 1, []int{0, 1, 2, 3, 4, 5}, []int{2}},
		{2, 6, 6, []int{2}, []int{0, 1, 2, 3, 4, 5}},
	}
	for _, tt := range tests {
		ns, ew := Members(tt.rank, tt.size, tt.p)
		assert.Equal(t, tt.ns, ns, "rank %d of %d, p=%d", tt.rank, tt.size, tt.p)
		assert.Equal(t, tt.ew, ew, "rank %d of %d, p=%d", tt.rank, tt.size, tt.p)

		ns2, ew2 := Members(tt.rank, tt.size, tt.p)
		assert.Equal(t, ns, ns2)
		assert.Equal(t, ew, ew2)
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(6, 2, 3))
	for _, pq := range [][2]int{{2, 2}, {0, 6}, {6, 0}, {-2, -3}} {
		err := Check(6, pq[0], pq[1])
		assert.True(t, errors.Is(err, ErrShape), "%v: %v", pq, err)
	}
}

func build(t *testing.T, p, q int) []*Topology {
	t.Helper()
	w, err := local.NewWorld(p * q)
	require.NoError(t, err)
	tops := make([]*Topology, p*q)
	var mu sync.Mutex
	require.NoError(t, w.Run(func(c comm.Communicator) error {
		top, err := Build(c, p, q)
		mu.Lock()
		tops[c.Rank()] = top
		mu.Unlock()
		return err
	}))
	return tops
}

func TestBuildGroups(t *testing.T) {
	const p, q = 3, 2
	tops := build(t, p, q)
	for r, top := range tops {
		assert.Equal(t, r/p, top.Row)
		assert.Equal(t, r%p, top.Col)
		assert.Equal(t, q, top.NS.Size())
		assert.Equal(t, p, top.EW.Size())
		assert.Equal(t, top.Row, top.NS.Rank())
		assert.Equal(t, top.Col, top.EW.Rank())
	}
}

func TestBuildTwiceOnOneWorld(t *testing.T) {
	const p, q = 3, 2
	w, err := local.NewWorld(p * q)
	require.NoError(t, err)
	require.NoError(t, w.Run(func(c comm.Communicator) error {
		first, err := Build(c, p, q)
		if err != nil {
			return err
		}
		second, err := Build(c, p, q)
		if err != nil {
			return err
		}
		for _, pair := range [][2]comm.Communicator{{first.NS, second.NS}, {first.EW, second.EW}} {
			a, b := pair[0], pair[1]
			assert.Equal(t, a.Rank(), b.Rank(), "rank %d", c.Rank())
			assert.Equal(t, a.Size(), b.Size(), "rank %d", c.Rank())
			assert.Equal(t, a.(*comm.Group).ID(), b.(*comm.Group).ID(), "rank %d", c.Rank())
		}
		if err := first.Close(); err != nil {
			return err
		}
		return second.Close()
	}))
}

func TestNeighboursPartition(t *testing.T) {
	const p, q = 3, 4
	tops := build(t, p, q)

	var north, south, east, west int
	for _, top := range tops {
		if _, ok := top.North(); ok {
			north++
		}
		if _, ok := top.South(); ok {
			south++
		}
		if _, ok := top.East(); ok {
			east++
		}
		if _, ok := top.West(); ok {
			west++
		}
	}
	assert.Equal(t, north, south)
	assert.Equal(t, east, west)
	assert.Equal(t, p*(q-1), north)
	assert.Equal(t, q*(p-1), east)

	corner := tops[0]
	_, ok := corner.North()
	assert.False(t, ok)
	_, ok = corner.West()
	assert.False(t, ok)
	s, ok := corner.South()
	assert.True(t, ok)
	assert.Equal(t, 1, s)
	e, ok := corner.East()
	assert.True(t, ok)
	assert.Equal(t, 1, e)
}

func TestSingleProcessHasNoNeighbours(t *testing.T) {
	top := build(t, 1, 1)[0]
	for _, f := range []func() (int, bool){top.North, top.South, top.East, top.West} {
		_, ok := f()
		assert.False(t, ok)
	}
	require.NoError(t, top.Close())
}

func TestBuildRejectsShape(t *testing.T) {
	w, err := local.NewWorld(4)
	require.NoError(t, err)
	c, err := w.Comm(0)
	require.NoError(t, err)
	_, err = Build(c, 3, 1)
	assert.True(t, errors.Is(err, ErrShape))
}
