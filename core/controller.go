package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/encodeous/dvsim/protocol"
	"github.com/encodeous/dvsim/state"
	"github.com/hashicorp/go-metrics"
	"golang.org/x/sync/errgroup"
)

type Phase int

const (
	Unconfigured Phase = iota
	Configured
	Running
	Stable
)

func (p Phase) String() string {
	switch p {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Stable:
		return "stable"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type NodeInfo struct {
	Id   state.NodeId
	Addr string
}

type RunResult struct {
	Steps   int
	Elapsed time.Duration
}

// Controller paces the simulation. Every step is three fully joined fan-outs: every node pulls
// its neighbours' tables, then every node relaxes, then every node's tables are collected.
// Operations are serialized, fan-out tasks only write their own slot.
type Controller struct {
	mu    sync.Mutex
	cfg   state.SimCfg
	topo  *state.Topology
	log   *slog.Logger
	nodes []NodeInfo
	local []*Node
	phase Phase
	// snapshot is the last collected DV table of every node, kept for the stability test
	snapshot state.Snapshot
	routing  state.Snapshot
	steps    int
	// sinceReload counts the steps since the last cost change, or since start
	sinceReload int
	stopped     bool
}

// NewController validates the config and topology. The topology is copied.
func NewController(cfg state.SimCfg, topo *state.Topology, log *slog.Logger) (*Controller, error) {
	err := state.SimConfigValidator(&cfg)
	if err != nil {
		return nil, err
	}
	err = state.TopologyValidator(&cfg, topo)
	if err != nil {
		return nil, err
	}
	return &Controller{
		cfg:   cfg,
		topo:  topo.Clone(),
		log:   log,
		phase: Configured,
	}, nil
}

// Start launches one in-process node per topology node on its configured endpoint, then seeds
// the first snapshot. Every listener is bound before any node serves, so the seed never races
// a bind.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.startable(); err != nil {
		return err
	}

	nodes := make([]*Node, 0, c.topo.Nodes)
	directory := make(map[state.NodeId]string)
	for i := range c.topo.Nodes {
		id := state.NodeAt(i)
		node := NewNode(c.cfg, id, c.topo.Costs, c.log)
		err := node.Listen(c.cfg.NodeAddr(id))
		if err != nil {
			for _, n := range nodes {
				n.Stop()
			}
			return err
		}
		nodes = append(nodes, node)
		directory[id] = node.Addr()
	}
	for _, node := range nodes {
		node.Serve(directory)
	}
	c.local = nodes

	return c.begin(ctx, directory)
}

// Attach runs the simulation against nodes that were started elsewhere. Each node is reloaded
// from the controller's topology first, so both sides agree on the cost matrix.
func (c *Controller) Attach(ctx context.Context, directory map[state.NodeId]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.startable(); err != nil {
		return err
	}
	for i := range c.topo.Nodes {
		if _, ok := directory[state.NodeAt(i)]; !ok {
			return fmt.Errorf("%w: no endpoint for node %d", state.ErrIncompleteDir, i+1)
		}
	}
	c.setNodes(directory)
	failed, err := c.broadcast(ctx, func() *protocol.Request {
		return protocol.NewChangeCost(c.topo.Costs)
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("controller: %d of %d nodes could not be reloaded", failed, len(c.nodes))
	}
	return c.begin(ctx, directory)
}

func (c *Controller) startable() error {
	if c.stopped {
		return state.ErrStopped
	}
	if c.phase != Configured {
		return state.ErrAlreadyStarted
	}
	return nil
}

func (c *Controller) setNodes(directory map[state.NodeId]string) {
	c.nodes = make([]NodeInfo, 0, c.topo.Nodes)
	for i := range c.topo.Nodes {
		id := state.NodeAt(i)
		c.nodes = append(c.nodes, NodeInfo{Id: id, Addr: directory[id]})
	}
}

// begin seeds the snapshot. No stability test is made, there is nothing to compare against.
func (c *Controller) begin(ctx context.Context, directory map[state.NodeId]string) error {
	c.setNodes(directory)
	snap, rts, failed, err := c.collect(ctx)
	if err != nil {
		return err
	}
	if failed > 0 {
		c.log.Warn("seed snapshot is incomplete", "failed", failed)
	}
	c.snapshot = snap
	c.routing = rts
	c.steps = 0
	c.sinceReload = 0
	c.phase = Running
	c.log.Info("simulation started", "nodes", len(c.nodes))
	return nil
}

// RunOneStep advances the simulation by one synchronous Bellman-Ford iteration. A stable run is
// left untouched and reports stepped=false.
func (c *Controller) RunOneStep(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.running(); err != nil {
		return false, err
	}
	if c.phase == Stable {
		return false, nil
	}
	return true, c.step(ctx)
}

func (c *Controller) running() error {
	if c.stopped {
		return state.ErrStopped
	}
	if c.phase < Running {
		return state.ErrNotStarted
	}
	return nil
}

func (c *Controller) step(ctx context.Context) error {
	start := time.Now()

	failedPull, err := c.broadcast(ctx, func() *protocol.Request {
		return protocol.NewRequest(protocol.PullNeighbourVectors)
	})
	if err != nil {
		return err
	}
	failedRelax, err := c.broadcast(ctx, func() *protocol.Request {
		return protocol.NewRequest(protocol.UpdateDV)
	})
	if err != nil {
		return err
	}
	snap, rts, failedCollect, err := c.collect(ctx)
	if err != nil {
		return err
	}

	c.steps++
	c.sinceReload++
	metrics.IncrCounter(MetricStepCount, 1)
	metrics.MeasureSince(MetricStepLatency, start)

	changed := 0
	for i := range snap {
		if i >= len(c.snapshot) || !snap[i].Equal(c.snapshot[i]) {
			changed++
		}
	}
	failed := failedPull + failedRelax + failedCollect
	stable := failed == 0 && changed == 0 && len(c.snapshot) == len(snap)
	c.snapshot = snap
	c.routing = rts

	c.log.Info("step complete", "step", c.steps, "changed", changed, "failed", failed, "stable", stable, "elapsed", time.Since(start))
	if stable {
		c.phase = Stable
		metrics.AddSample(MetricConvergenceStepCount, float32(c.sinceReload))
		c.log.Info("simulation is stable", "steps", c.sinceReload)
	}
	return nil
}

// RunToStable steps until the stability test succeeds. There is no step cap, while a node keeps
// failing it only returns once ctx is cancelled.
func (c *Controller) RunToStable(ctx context.Context) (RunResult, error) {
	start := time.Now()
	res := RunResult{}
	for {
		stepped, err := c.RunOneStep(ctx)
		res.Elapsed = time.Since(start)
		if err != nil {
			return res, err
		}
		if !stepped {
			return res, nil
		}
		res.Steps++
	}
}

// ChangeCost updates both directions of a link and cold-starts every node from the new matrix,
// then runs one step. Invalid input is rejected before anything is modified.
func (c *Controller) ChangeCost(ctx context.Context, from, to state.NodeId, cost int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.running(); err != nil {
		return err
	}

	next := c.topo.Clone()
	err := next.SetCost(from, to, cost)
	if err != nil {
		return err
	}
	err = state.TopologyValidator(&c.cfg, next)
	if err != nil {
		return err
	}
	c.topo = next
	c.phase = Running
	c.sinceReload = 0
	c.log.Info("changing cost", "from", from, "to", to, "cost", cost)

	failed, err := c.broadcast(ctx, func() *protocol.Request {
		return protocol.NewChangeCost(next.Costs)
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		c.log.Warn("some nodes did not reload", "failed", failed)
	}
	// the step below skips the stability test: it has no snapshot to compare against
	c.snapshot = nil
	return c.step(ctx)
}

// fanOut sends one request to every node concurrently and waits for all of them. A node that
// fails leaves a nil reply in its slot, only cancellation of ctx aborts the phase.
func (c *Controller) fanOut(ctx context.Context, newReq func() *protocol.Request) ([]*protocol.Reply, int, error) {
	replies := make([]*protocol.Reply, len(c.nodes))
	to := TimeoutsOf(c.cfg)
	g, gctx := errgroup.WithContext(ctx)
	for i, node := range c.nodes {
		g.Go(func() error {
			reply, err := Call(gctx, node.Addr, newReq(), to)
			if err != nil {
				if ctx.Err() != nil {
					return context.Cause(ctx)
				}
				c.log.Warn("node request failed", LabelNode.L(node.Id), "err", err)
				return nil
			}
			replies[i] = reply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	failed := 0
	for _, r := range replies {
		if r == nil {
			failed++
		}
	}
	return replies, failed, nil
}

func (c *Controller) broadcast(ctx context.Context, newReq func() *protocol.Request) (int, error) {
	_, failed, err := c.fanOut(ctx, newReq)
	return failed, err
}

// collect gathers every node's DV and routing table. A node that cannot be read keeps the
// tables from the previous snapshot, or an empty table if there is none.
func (c *Controller) collect(ctx context.Context) (state.Snapshot, state.Snapshot, int, error) {
	replies, failed, err := c.fanOut(ctx, func() *protocol.Request {
		return protocol.NewRequest(protocol.GetDVAndRoutingTable)
	})
	if err != nil {
		return nil, nil, 0, err
	}
	n := c.topo.Nodes
	snap := make(state.Snapshot, len(c.nodes))
	rts := make(state.Snapshot, len(c.nodes))
	for i, reply := range replies {
		if reply != nil && reply.DV.Size() == n && reply.RoutingTable.Size() == n {
			snap[i] = reply.DV
			rts[i] = reply.RoutingTable
			continue
		}
		if reply != nil {
			c.log.Warn("node returned tables of the wrong size", LabelNode.L(c.nodes[i].Id), "dv", reply.DV.Size(), "rt", reply.RoutingTable.Size())
			failed++
		}
		if i < len(c.snapshot) && i < len(c.routing) {
			snap[i] = c.snapshot[i]
			rts[i] = c.routing[i]
		} else {
			snap[i] = unknownTable(n, state.EffectiveInfinity(c.cfg.Infinity, c.topo.Costs))
			rts[i] = state.NewMatrix(n, 0)
		}
	}
	return snap, rts, failed, nil
}

func unknownTable(n, inf int) state.Matrix {
	m := state.NewMatrix(n, inf)
	for i := range n {
		m[i][i] = 0
	}
	return m
}

// Snapshot returns a copy of the last collected DV tables, indexed by node index.
func (c *Controller) Snapshot() state.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.Clone()
}

func (c *Controller) RoutingTables() state.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.routing.Clone()
}

func (c *Controller) Stable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == Stable
}

func (c *Controller) Steps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steps
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) Topology() *state.Topology {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topo.Clone()
}

func (c *Controller) Nodes() []NodeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.nodes)
}

// Infinity is the distance the run currently treats as unreachable. It is the configured value
// unless the topology has paths that long.
func (c *Controller) Infinity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return state.EffectiveInfinity(c.cfg.Infinity, c.topo.Costs)
}

// Stop shuts down the in-process nodes. Attached nodes are left running.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	for _, node := range c.local {
		node.Stop()
	}
	c.local = nil
	c.log.Debug("controller stopped")
}
