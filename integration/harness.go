//go:build integration

package integration

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// SimHarness runs a whole simulation on loopback with ephemeral ports.
type SimHarness struct {
	Cfg   state.SimCfg
	Edges []state.Edge
	Ctl   *core.Controller
	// Nodes is only set when the nodes were started outside the controller
	Nodes []*core.Node
	log   *slog.Logger
}

func NewHarness() *SimHarness {
	cfg := state.DefaultSimCfg()
	cfg.BasePort = 0
	cfg.DialTimeout = time.Second
	cfg.RequestTimeout = 5 * time.Second
	log, _, err := core.NewLogger("test", slog.LevelWarn, "")
	if err != nil {
		panic(err)
	}
	return &SimHarness{Cfg: cfg, log: log}
}

func (h *SimHarness) AddLink(from, to state.NodeId, cost int) *SimHarness {
	h.Edges = append(h.Edges, state.Edge{V1: from, V2: to, V3: cost})
	return h
}

func (h *SimHarness) Topology(t *testing.T) *state.Topology {
	t.Helper()
	topo, err := state.TopologyFromEdges(h.Edges, h.Cfg.MaxNodes)
	require.NoError(t, err)
	return topo
}

// Start launches the nodes inside the controller.
func (h *SimHarness) Start(t *testing.T) {
	t.Helper()
	ctl, err := core.NewController(h.Cfg, h.Topology(t), h.log)
	require.NoError(t, err)
	h.Ctl = ctl
	require.NoError(t, ctl.Start(context.Background()))
}

// StartDetached serves every node independently, then attaches a controller to them.
func (h *SimHarness) StartDetached(t *testing.T) {
	t.Helper()
	topo := h.Topology(t)
	dir := make(map[state.NodeId]string)
	for i := range topo.Nodes {
		id := state.NodeAt(i)
		n := core.NewNode(h.Cfg, id, topo.Costs, h.log)
		require.NoError(t, n.Listen(h.Cfg.NodeAddr(id)))
		h.Nodes = append(h.Nodes, n)
		dir[id] = n.Addr()
	}
	for _, n := range h.Nodes {
		n.Serve(dir)
	}
	ctl, err := core.NewController(h.Cfg, topo, h.log)
	require.NoError(t, err)
	h.Ctl = ctl
	require.NoError(t, ctl.Attach(context.Background(), dir))
}

func (h *SimHarness) Stop() {
	if h.Ctl != nil {
		h.Ctl.Stop()
	}
	for _, n := range h.Nodes {
		n.Stop()
	}
}

// Reference computes all-pairs shortest paths of the controller's current topology.
func (h *SimHarness) Reference() state.Matrix {
	costs := h.Ctl.Topology().Costs
	inf := h.Ctl.Infinity()
	n := costs.Size()
	d := state.NewMatrix(n, inf)
	for i := range n {
		for j := range n {
			if i == j {
				d[i][j] = 0
			} else if costs[i][j] != 0 {
				d[i][j] = costs[i][j]
			}
		}
	}
	for k := range n {
		for i := range n {
			for j := range n {
				d[i][j] = min(d[i][j], core.AddCost(d[i][k], d[k][j], inf))
			}
		}
	}
	return d
}

// Distances returns every node's own row from the last snapshot.
func (h *SimHarness) Distances() state.Matrix {
	snap := h.Ctl.Snapshot()
	m := make(state.Matrix, len(snap))
	for i, table := range snap {
		m[i] = table[i]
	}
	return m
}

func (h *SimHarness) AssertOptimal(t *testing.T) {
	t.Helper()
	if diff := cmp.Diff(h.Reference(), h.Distances()); diff != "" {
		t.Fatalf("distances are not optimal (-want +got):\n%s", diff)
	}
}

// AssertNextHops checks every known next hop is a neighbour on a shortest path.
func (h *SimHarness) AssertNextHops(t *testing.T) {
	t.Helper()
	ref := h.Reference()
	costs := h.Ctl.Topology().Costs
	inf := h.Ctl.Infinity()
	rts := h.Ctl.RoutingTables()
	for i, rt := range rts {
		for to, nh := range rt[i] {
			switch {
			case to == i:
				require.Equal(t, i+1, nh, "node %d next hop to itself", i+1)
			case ref[i][to] >= inf:
				require.Equal(t, 0, nh, "node %d has a next hop to unreachable %d", i+1, to+1)
			default:
				k := state.NodeId(nh).Index()
				require.NotZero(t, nh, "node %d has no next hop to %d", i+1, to+1)
				require.NotZero(t, costs[i][k], "node %d next hop %d is not a neighbour", i+1, nh)
				require.Equal(t, ref[i][to], costs[i][k]+ref[k][to], "node %d next hop %d to %d is not on a shortest path", i+1, nh, to+1)
			}
		}
	}
}

func nodeId(i int) state.NodeId {
	return state.NodeId(i)
}
