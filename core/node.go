package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"reflect"
	"runtime"
	"sync"
	"time"

	"github.com/encodeous/dvsim/protocol"
	"github.com/encodeous/dvsim/state"
	"github.com/google/uuid"
	"github.com/hashicorp/go-metrics"
	"github.com/jellydator/ttlcache/v3"
)

// Node is one simulated router: a listener accepting one request per connection, and a main loop
// that owns the DV state and runs every engine operation serially.
type Node struct {
	*state.State
	listener net.Listener
	dispatch chan func(*state.State) error
	// pullFailures suppresses repeated warnings for a neighbour that keeps failing
	pullFailures *ttlcache.Cache[state.NodeId, int]
	tracer       logTracer
	handlers     sync.WaitGroup
	loops        sync.WaitGroup
}

// NewNode creates node id from the run's cost matrix. The node does nothing until Listen and Serve.
func NewNode(cfg state.SimCfg, id state.NodeId, costs state.Matrix, log *slog.Logger) *Node {
	ctx, cancel := context.WithCancelCause(context.Background())
	dispatch := make(chan func(*state.State) error, state.DispatchBuffer)
	log = log.With(LabelNode.L(id))
	tracer := logTracer{log: log}

	n := &Node{
		State: &state.State{
			Env: &state.Env{
				DispatchChannel: dispatch,
				SimCfg:          cfg,
				Self:            id,
				Directory:       make(map[state.NodeId]string),
				Context:         ctx,
				Cancel:          cancel,
				Log:             log,
			},
			DVState: NewDVState(id, cfg.Infinity, costs, tracer),
		},
		dispatch: dispatch,
		pullFailures: ttlcache.New[state.NodeId, int](
			ttlcache.WithTTL[state.NodeId, int](state.NeighbourWarnTTL),
			ttlcache.WithDisableTouchOnHit[state.NodeId, int](),
		),
		tracer: tracer,
	}
	return n
}

// Listen binds the node's endpoint. A bind failure is fatal for the node and is not retried.
func (n *Node) Listen(addr string) error {
	config := net.ListenConfig{}
	listener, err := config.Listen(n.Context, "tcp", addr)
	if err != nil {
		n.Log.Error("failed to listen on addr", "addr", addr, "err", err)
		return fmt.Errorf("node %d: listen on %s: %w", n.Self, addr, err)
	}
	n.listener = listener
	n.Log.Info("listening on", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound endpoint, only valid after Listen.
func (n *Node) Addr() string {
	return n.listener.Addr().String()
}

// Serve starts the main loop and the accept loop. directory gives the endpoint of every node in
// the run and must not be modified afterwards. Only the first call has an effect.
func (n *Node) Serve(directory map[state.NodeId]string) {
	if n.Started.Swap(true) {
		return
	}
	maps.Copy(n.Directory, directory)
	n.loops.Add(2)
	go n.mainLoop(n.dispatch)
	go n.acceptLoop()
}

// Stop closes the listener and waits for the loops, then for in-flight handlers, to exit. The
// accept loop is the only caller of handlers.Add, so it must be gone before handlers.Wait.
func (n *Node) Stop() {
	if n.Stopping.Swap(true) {
		return // don't stop twice
	}
	n.Cancel(context.Canceled)
	if n.listener != nil {
		n.listener.Close()
	}
	n.loops.Wait()
	n.handlers.Wait()
	n.pullFailures.DeleteAll()
	n.Log.Debug("stopped")
}

func (n *Node) mainLoop(dispatch <-chan func(*state.State) error) {
	defer n.loops.Done()
	n.Log.Debug("started main loop")
	for {
		select {
		case fun := <-dispatch:
			start := time.Now()
			err := n.runDispatched(fun)
			if err != nil {
				n.Log.Error("error occurred during dispatch: ", "error", err)
				n.Cancel(err)
			}
			elapsed := time.Since(start)
			metrics.MeasureSinceWithLabels(MetricDispatchLatency, start, []metrics.Label{LabelNode.M(n.Self.String())})
			if elapsed > state.SlowDispatch {
				n.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-n.Context.Done():
			n.Log.Debug("stopped main loop", "reason", context.Cause(n.Context).Error())
			return
		}
	}
}

// runDispatched runs fun on the main loop. A panic becomes an error, which stops the node.
func (n *Node) runDispatched(fun func(*state.State) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fun(n.State)
}

func (n *Node) acceptLoop() {
	defer n.loops.Done()
	// a node cancelled by a fault stops accepting as well
	stop := context.AfterFunc(n.Context, func() {
		n.listener.Close()
	})
	defer stop()
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			if n.Context.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			n.Log.Warn("failed to accept connection", "err", err)
			continue
		}
		n.handlers.Add(1)
		go func() {
			defer n.handlers.Done()
			n.handle(conn)
		}()
	}
}

// handle serves exactly one request on conn and closes it. Faults in the handler close the
// connection without a reply, the peer sees the closure. Faults on the main loop stop the node.
func (n *Node) handle(conn net.Conn) {
	log := n.Log.With("conn", uuid.New().String())
	defer conn.Close()
	stop := context.AfterFunc(n.Context, func() {
		conn.Close()
	})
	defer stop()
	defer func() {
		if r := recover(); r != nil {
			metrics.IncrCounterWithLabels(MetricServeErrorCount, 1, []metrics.Label{LabelNode.M(n.Self.String())})
			log.Error("request handler fault, closing without reply", "panic", r)
		}
	}()

	if n.RequestTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(n.RequestTimeout))
	}

	req := &protocol.Request{}
	err := protocol.Receive(conn, req)
	if err != nil {
		log.Warn("failed to read request", "remote", conn.RemoteAddr().String(), "err", err)
		return
	}
	log = log.With("req", req.Id.String(), LabelKind.L(req.Kind))
	log.Debug("received request")

	labels := []metrics.Label{LabelNode.M(n.Self.String()), LabelKind.M(req.Kind.String())}
	metrics.IncrCounterWithLabels(MetricServeCount, 1, labels)

	reply, err := n.serve(req)
	if err != nil {
		metrics.IncrCounterWithLabels(MetricServeErrorCount, 1, labels)
		log.Error("failed to serve request, closing without reply", "err", err)
		return
	}
	err = protocol.Send(conn, reply)
	if err != nil {
		log.Warn("failed to write reply", "err", err)
		return
	}
	log.Debug("replied")
}

func (n *Node) serve(req *protocol.Request) (*protocol.Reply, error) {
	reply := req.Ack()
	switch req.Kind {
	case protocol.GetDV:
		res, err := n.DispatchWait(func(s *state.State) (any, error) {
			return s.Table(), nil
		})
		if err != nil {
			return nil, err
		}
		reply.DV = res.(state.Matrix)
	case protocol.GetDVAndRoutingTable:
		res, err := n.DispatchWait(func(s *state.State) (any, error) {
			return state.Pair[state.Matrix, state.Matrix]{V1: s.Table(), V2: s.RoutingTable()}, nil
		})
		if err != nil {
			return nil, err
		}
		tables := res.(state.Pair[state.Matrix, state.Matrix])
		reply.DV = tables.V1
		reply.RoutingTable = tables.V2
	case protocol.PullNeighbourVectors:
		err := n.PullNeighbourVectors()
		if err != nil {
			return nil, err
		}
	case protocol.UpdateDV:
		res, err := n.DispatchWait(func(s *state.State) (any, error) {
			changed := Relax(s.DVState, n.tracer)
			if changed > 0 && s.Log.Enabled(s.Context, slog.LevelDebug) {
				s.Log.Debug("relaxed", "changed", changed, "state", "\n"+DescribeState(s.DVState))
			}
			return changed, nil
		})
		if err != nil {
			return nil, err
		}
		metrics.AddSampleWithLabels(MetricRelaxChanges, float32(res.(int)), []metrics.Label{LabelNode.M(n.Self.String())})
	case protocol.ChangeCost:
		_, err := n.DispatchWait(func(s *state.State) (any, error) {
			if req.Costs.Size() != s.N {
				return nil, fmt.Errorf("%w: got %d rows, run has %d nodes", state.ErrMatrixShape, req.Costs.Size(), s.N)
			}
			if err := state.CostMatrixValidator(req.Costs); err != nil {
				return nil, err
			}
			Reload(s.DVState, req.Costs, n.tracer)
			return nil, nil
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnknownKind, req.Kind)
	}
	return reply, nil
}

// PullNeighbourVectors fetches the DV table of every neighbour, in neighbour order, over a new
// connection each. A neighbour that cannot be reached keeps its previously cached table. Every
// successful fetch is stored before this returns.
func (n *Node) PullNeighbourVectors() error {
	res, err := n.DispatchWait(func(s *state.State) (any, error) {
		return append([]state.NodeId(nil), s.Neighbours...), nil
	})
	if err != nil {
		return err
	}
	for _, neigh := range res.([]state.NodeId) {
		dv, err := n.pullNeighbour(neigh)
		if err != nil {
			if n.Context.Err() != nil {
				return context.Cause(n.Context)
			}
			n.reportPullFailure(neigh, err)
			continue
		}
		n.pullFailures.Delete(neigh)
		_, err = n.DispatchWait(func(s *state.State) (any, error) {
			StoreNeighbourDV(s.DVState, neigh, dv, n.tracer)
			return nil, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) pullNeighbour(neigh state.NodeId) (state.Matrix, error) {
	addr, ok := n.AddrOf(neigh)
	if !ok {
		return nil, fmt.Errorf("%w: no endpoint for neighbour %d", state.ErrInvalidNode, neigh)
	}
	reply, err := Call(n.Context, addr, protocol.NewRequest(protocol.GetDV), TimeoutsOf(n.SimCfg))
	if err != nil {
		return nil, err
	}
	if reply.DV == nil {
		return nil, fmt.Errorf("%w: neighbour %d replied without a DV table", protocol.ErrMalformed, neigh)
	}
	return reply.DV, nil
}

func (n *Node) reportPullFailure(neigh state.NodeId, err error) {
	metrics.IncrCounterWithLabels(MetricNeighbourPullErrors, 1, []metrics.Label{LabelNode.M(n.Self.String())})
	count := 1
	if item := n.pullFailures.Get(neigh); item != nil {
		count += item.Value()
		n.Log.Debug("neighbour still unreachable, using cached table", "neigh", neigh, "failures", count, "err", err)
	} else {
		n.Log.Warn("neighbour unreachable, using cached table", "neigh", neigh, "err", err)
	}
	n.pullFailures.Set(neigh, count, ttlcache.DefaultTTL)
}
