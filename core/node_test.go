package core

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/encodeous/dvsim/protocol"
	"github.com/encodeous/dvsim/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testCfg() state.SimCfg {
	cfg := state.DefaultSimCfg()
	cfg.BasePort = 0
	cfg.DialTimeout = time.Second
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

// StartNodes serves every node of topo on an ephemeral loopback port.
func StartNodes(t *testing.T, cfg state.SimCfg, topo *state.Topology) ([]*Node, map[state.NodeId]string) {
	t.Helper()
	nodes := make([]*Node, 0, topo.Nodes)
	dir := make(map[state.NodeId]string)
	for i := range topo.Nodes {
		id := state.NodeAt(i)
		n := NewNode(cfg, id, topo.Costs, DiscardLogger())
		require.NoError(t, n.Listen(cfg.NodeAddr(id)))
		nodes = append(nodes, n)
		dir[id] = n.Addr()
	}
	for _, n := range nodes {
		n.Serve(dir)
	}
	t.Cleanup(func() {
		for _, n := range nodes {
			n.Stop()
		}
	})
	return nodes, dir
}

func mustCall(t *testing.T, addr string, req *protocol.Request) *protocol.Reply {
	t.Helper()
	reply, err := Call(context.Background(), addr, req, TimeoutsOf(testCfg()))
	require.NoError(t, err)
	return reply
}

func TestNodeServesTables(t *testing.T) {
	topo := MakeTopology(t, 6, E(1, 2, 1), E(2, 3, 1), E(1, 3, 5))
	_, dir := StartNodes(t, testCfg(), topo)

	reply := mustCall(t, dir[1], protocol.NewRequest(protocol.GetDV))
	assert.Equal(t, protocol.GetDV, reply.Kind)
	assert.Equal(t, []int{0, 1, 5}, reply.DV[0])
	assert.Nil(t, reply.RoutingTable)

	reply = mustCall(t, dir[3], protocol.NewRequest(protocol.GetDVAndRoutingTable))
	assert.Equal(t, []int{5, 1, 0}, reply.DV[2])
	assert.Equal(t, state.Matrix{{0, 0, 0}, {0, 0, 0}, {1, 2, 3}}, reply.RoutingTable)
}

func TestNodePullAndRelax(t *testing.T) {
	topo := MakeTopology(t, 6, E(1, 2, 1), E(2, 3, 1), E(1, 3, 5))
	nodes, dir := StartNodes(t, testCfg(), topo)

	req := protocol.NewRequest(protocol.PullNeighbourVectors)
	reply := mustCall(t, dir[1], req)
	assert.Equal(t, req.Id, reply.Id)
	assert.Nil(t, reply.DV)

	res, err := nodes[0].DispatchWait(func(s *state.State) (any, error) {
		return s.NeighbourDV[0].Clone(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1}, res.(state.Matrix)[1])

	mustCall(t, dir[1], protocol.NewRequest(protocol.UpdateDV))
	reply = mustCall(t, dir[1], protocol.NewRequest(protocol.GetDVAndRoutingTable))
	assert.Equal(t, []int{0, 1, 2}, reply.DV[0])
	assert.Equal(t, []int{1, 2, 2}, reply.RoutingTable[0])
}

func TestNodeChangeCost(t *testing.T) {
	topo := MakeTopology(t, 6, E(1, 2, 1), E(2, 3, 1))
	_, dir := StartNodes(t, testCfg(), topo)

	next := topo.Clone()
	require.NoError(t, next.SetCost(1, 3, 4))
	mustCall(t, dir[1], protocol.NewChangeCost(next.Costs))

	reply := mustCall(t, dir[1], protocol.NewRequest(protocol.GetDV))
	assert.Equal(t, []int{0, 1, 4}, reply.DV[0])
}

func TestNodeRejectsBadCostMatrix(t *testing.T) {
	topo := MakeTopology(t, 6, E(1, 2, 1), E(2, 3, 1))
	_, dir := StartNodes(t, testCfg(), topo)
	to := TimeoutsOf(testCfg())

	_, err := Call(context.Background(), dir[1], protocol.NewChangeCost(state.NewMatrix(2, 0)), to)
	assert.Error(t, err, "wrong size must close without a reply")

	asym := state.Matrix{{0, 1, 0}, {2, 0, 1}, {0, 1, 0}}
	_, err = Call(context.Background(), dir[1], protocol.NewChangeCost(asym), to)
	assert.Error(t, err, "asymmetric costs must close without a reply")

	// the node keeps serving with its old state
	reply := mustCall(t, dir[1], protocol.NewRequest(protocol.GetDV))
	assert.Equal(t, []int{0, 1, state.DefaultInfinity}, reply.DV[0])
}

func TestNodeClosesOnGarbage(t *testing.T) {
	topo := MakeTopology(t, 6, E(1, 2, 1))
	_, dir := StartNodes(t, testCfg(), topo)

	conn, err := net.Dial("tcp", dir[1])
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte{0, 0, 0, 3, 0xff, 0xff, 0xff})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	err = protocol.Receive(conn, &protocol.Reply{})
	assert.ErrorIs(t, err, io.EOF, "node must close without a reply")
}

func TestNodeUnreachableNeighbourKeepsCache(t *testing.T) {
	cfg := testCfg()
	topo := MakeTopology(t, 6, E(1, 2, 1))

	dead, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.Addr().String()
	require.NoError(t, dead.Close())

	n := NewNode(cfg, 1, topo.Costs, DiscardLogger())
	require.NoError(t, n.Listen(cfg.NodeAddr(1)))
	n.Serve(map[state.NodeId]string{1: n.Addr(), 2: deadAddr})
	defer n.Stop()

	for range 2 {
		reply := mustCall(t, n.Addr(), protocol.NewRequest(protocol.PullNeighbourVectors))
		assert.Equal(t, protocol.PullNeighbourVectors, reply.Kind)
	}
	assert.Equal(t, 2, n.pullFailures.Get(2).Value())

	res, err := n.DispatchWait(func(s *state.State) (any, error) {
		return s.NeighbourDV[0].Clone(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, state.NewMatrix(2, state.DefaultInfinity), res.(state.Matrix))
}

func TestNodeStopIsIdempotent(t *testing.T) {
	cfg := testCfg()
	topo := MakeTopology(t, 6, E(1, 2, 1))
	n := NewNode(cfg, 1, topo.Costs, DiscardLogger())
	require.NoError(t, n.Listen(cfg.NodeAddr(1)))
	addr := n.Addr()
	n.Serve(map[state.NodeId]string{1: addr})
	n.Stop()
	n.Stop()

	_, err := Call(context.Background(), addr, protocol.NewRequest(protocol.GetDV), TimeoutsOf(cfg))
	assert.Error(t, err)
	_, err = n.DispatchWait(func(s *state.State) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNodeListenFailure(t *testing.T) {
	cfg := testCfg()
	topo := MakeTopology(t, 6, E(1, 2, 1))
	a := NewNode(cfg, 1, topo.Costs, DiscardLogger())
	require.NoError(t, a.Listen(cfg.NodeAddr(1)))
	defer a.Stop()

	b := NewNode(cfg, 2, topo.Costs, DiscardLogger())
	err := b.Listen(a.Addr())
	assert.Error(t, err)
}

func TestNodeStopWhileAccepting(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	cfg := testCfg()
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.RequestTimeout = time.Second
	topo := MakeTopology(t, 6, E(1, 2, 1))

	for range 50 {
		a := NewNode(cfg, 1, topo.Costs, DiscardLogger())
		require.NoError(t, a.Listen(cfg.NodeAddr(1)))
		b := NewNode(cfg, 2, topo.Costs, DiscardLogger())
		require.NoError(t, b.Listen(cfg.NodeAddr(2)))
		dir := map[state.NodeId]string{1: a.Addr(), 2: b.Addr()}
		a.Serve(dir)
		b.Serve(dir)

		done := make(chan struct{})
		wg := sync.WaitGroup{}
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-done:
						return
					default:
					}
					_, _ = Call(context.Background(), dir[1], protocol.NewRequest(protocol.PullNeighbourVectors), TimeoutsOf(cfg))
				}
			}()
		}
		time.Sleep(2 * time.Millisecond)
		a.Stop()
		close(done)
		wg.Wait()
		b.Stop()
	}
}

func TestNodeMainLoopFaultStopsNode(t *testing.T) {
	cfg := testCfg()
	topo := MakeTopology(t, 6, E(1, 2, 1))
	n := NewNode(cfg, 1, topo.Costs, DiscardLogger())
	require.NoError(t, n.Listen(cfg.NodeAddr(1)))
	addr := n.Addr()
	n.Serve(map[state.NodeId]string{1: addr})
	defer n.Stop()

	_, err := n.DispatchWait(func(s *state.State) (any, error) {
		panic("bad state")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorContains(t, context.Cause(n.Context), "panic: bad state")

	_, err = Call(context.Background(), addr, protocol.NewRequest(protocol.GetDV), TimeoutsOf(cfg))
	assert.Error(t, err, "a faulted node must not serve")
}

func TestNodeServeTwice(t *testing.T) {
	cfg := testCfg()
	topo := MakeTopology(t, 6, E(1, 2, 1))
	n := NewNode(cfg, 1, topo.Costs, DiscardLogger())
	require.NoError(t, n.Listen(cfg.NodeAddr(1)))
	n.Serve(map[state.NodeId]string{1: n.Addr()})
	n.Serve(map[state.NodeId]string{1: n.Addr(), 2: "127.0.0.1:1"})
	assert.True(t, n.Started.Load())

	_, ok := n.AddrOf(2)
	assert.False(t, ok, "second Serve must not change the directory")
	reply := mustCall(t, n.Addr(), protocol.NewRequest(protocol.GetDV))
	assert.Equal(t, []int{0, 1}, reply.DV[0])
	n.Stop()
}
