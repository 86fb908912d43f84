package state

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// State access must be done only on the node's main loop
type State struct {
	*Env
	*DVState
}

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan<- func(s *State) error
	SimCfg
	Self NodeId
	// Directory maps every node of the run to its endpoint, so a node can reach any neighbour
	// the cost matrix gives it.
	Directory map[NodeId]string
	Context   context.Context
	Cancel    context.CancelCauseFunc
	Log       *slog.Logger
	// Started is set by the first Serve, Stopping by the first Stop.
	Started  atomic.Bool
	Stopping atomic.Bool
}

func (e *Env) AddrOf(id NodeId) (string, bool) {
	addr, ok := e.Directory[id]
	return addr, ok
}
