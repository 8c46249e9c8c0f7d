package rpc

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbromberger/jacobi"
	"github.com/sbromberger/jacobi/comm"
	"github.com/sbromberger/jacobi/comm/local"
	"github.com/sbromberger/jacobi/grid"
)

// serve starts size nodes on loopback ports.
func serve(t *testing.T, size int) []*Node {
	t.Helper()
	liss := make([]net.Listener, size)
	peers := make([]string, size)
	for r := range liss {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		liss[r] = lis
		peers[r] = lis.Addr().String()
	}
	nodes := make([]*Node, size)
	for r := range nodes {
		n, err := Serve(r, peers, liss[r])
		require.NoError(t, err)
		nodes[r] = n
	}
	return nodes
}

// loopback is serve with every node closed at the end of the test.
func loopback(t *testing.T, size int) []*Node {
	t.Helper()
	nodes := serve(t, size)
	t.Cleanup(func() {
		for _, n := range nodes {
			n.Close()
		}
	})
	return nodes
}

func TestCodecRoundTrip(t *testing.T) {
	e := comm.Envelope{Key: comm.Key{Comm: "world/0,2", Src: 1, Dst: 0, Tag: 4}, Data: []float64{1.5, -2}}
	b, err := gobCodec{}.Marshal(&e)
	require.NoError(t, err)

	var got comm.Envelope
	require.NoError(t, gobCodec{}.Unmarshal(b, &got))
	assert.Equal(t, e, got)
}

func TestListenRejectsBadRank(t *testing.T) {
	_, err := Listen(2, []string{"127.0.0.1:0"})
	assert.Error(t, err)
}

func TestRingAndAllreduceOverLoopback(t *testing.T) {
	const size = 3
	nodes := loopback(t, size)

	got := make([]float64, size)
	sums := make([]float64, size)
	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			c, err := nodes[r].World()
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, c.Send([]float64{float64(r), float64(r * r)}, (r+1)%size, 0))
			buf := make([]float64, 2)
			assert.NoError(t, c.Recv(buf, (r+size-1)%size, 0))
			got[r] = buf[1]

			s, err := c.Allreduce(float64(r+1), comm.OpSum)
			assert.NoError(t, err)
			sums[r] = s
		}(r)
	}
	wg.Wait()

	assert.Equal(t, []float64{4, 0, 1}, got)
	assert.Equal(t, []float64{6, 6, 6}, sums)
}

func TestSelfDeliveryStaysLocal(t *testing.T) {
	nodes := loopback(t, 1)
	c, err := nodes[0].World()
	require.NoError(t, err)

	require.NoError(t, c.Send([]float64{3}, 0, 2))
	buf := []float64{0}
	require.NoError(t, c.Recv(buf, 0, 2))
	assert.Equal(t, []float64{3}, buf)
}

// hotCorner gives every rank a different start so the ghost cells matter.
func hotCorner(rank int, b *grid.Block) {
	b.FillGhosts(10, 0, float64(rank), -5)
	b.FillInterior(float64(rank) / 2)
}

func solveLocal(t *testing.T, nb, mb int, o jacobi.Options) []*grid.Block {
	t.Helper()
	w, err := local.NewWorld(o.P * o.Q)
	require.NoError(t, err)
	blocks := make([]*grid.Block, w.Size())
	var mu sync.Mutex
	require.NoError(t, w.Run(func(c comm.Communicator) error {
		b, err := grid.New(nb, mb)
		if err != nil {
			return err
		}
		hotCorner(c.Rank(), b)
		_, err = jacobi.Solve(c, b, o)
		mu.Lock()
		blocks[c.Rank()] = b
		mu.Unlock()
		return err
	}))
	return blocks
}

// solveRPC runs one rank per node; each rank closes its own node as soon
// as it is done, the way jacobi-rpc exits.
func solveRPC(t *testing.T, nb, mb int, o jacobi.Options) ([]*grid.Block, []error) {
	t.Helper()
	nodes := serve(t, o.P*o.Q)
	blocks := make([]*grid.Block, len(nodes))
	errs := make([]error, len(nodes))
	var wg sync.WaitGroup
	for r, n := range nodes {
		wg.Add(1)
		go func(r int, n *Node) {
			defer wg.Done()
			defer n.Close()
			world, err := n.World()
			if err != nil {
				errs[r] = err
				return
			}
			b, err := grid.New(nb, mb)
			if err != nil {
				errs[r] = err
				return
			}
			hotCorner(r, b)
			res, err := jacobi.Solve(world, b, o)
			if err == nil {
				_, err = jacobi.ReduceTimings(world, res.Elapsed)
			}
			blocks[r], errs[r] = b, err
		}(r, n)
	}
	wg.Wait()
	return blocks, errs
}

func TestSolveMatchesLocalTransport(t *testing.T) {
	o := jacobi.Options{P: 2, Q: 2, MaxIter: 25}
	want := solveLocal(t, 4, 3, o)
	got, errs := solveRPC(t, 4, 3, o)
	for r := range got {
		require.NoError(t, errs[r], "rank %d", r)
		assert.Equal(t, want[r].Data(), got[r].Data(), "rank %d", r)
	}
}

func TestRanksCloseAsTheyFinish(t *testing.T) {
	o := jacobi.Options{P: 2, Q: 2, MaxIter: 3}
	for trial := 0; trial < 20; trial++ {
		_, errs := solveRPC(t, 3, 3, o)
		for r, err := range errs {
			require.NoError(t, err, "trial %d rank %d", trial, r)
		}
	}
}
