package core

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/encodeous/dvsim/state"
	"github.com/google/go-cmp/cmp"
)

type HarnessEvent struct {
	Event DVEvent
	Desc  string
	Args  []any
}

type DVHarness struct {
	events []HarnessEvent
}

func (h *DVHarness) Log(event DVEvent, desc string, args ...any) {
	h.events = append(h.events, HarnessEvent{Event: event, Desc: desc, Args: args})
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, e := range h {
		cur := e.Event.String() + " " + e.Desc
		for _, arg := range e.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// GetEvents drains the recorded events.
func (h *DVHarness) GetEvents() HarnessEvents {
	x := h.events
	h.events = make([]HarnessEvent, 0)
	return x
}

// contains matches key/value pairs in the event args.
func (e HarnessEvents) contains(event DVEvent, kv ...any) bool {
	for _, ev := range e {
		if ev.Event != event {
			continue
		}
		match := true
		for i := 0; i+1 < len(kv); i += 2 {
			idx := slices.Index(ev.Args, kv[i])
			if idx == -1 || idx+1 >= len(ev.Args) || !cmp.Equal(ev.Args[idx+1], kv[i+1]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, event DVEvent, kv ...any) {
	t.Helper()
	if e.contains(event, kv...) {
		return
	}
	t.Fatal("Expected event not found: ", event, " with args: ", kv, " in\n", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, event DVEvent, kv ...any) {
	t.Helper()
	if e.contains(event, kv...) {
		t.Fatal("Unexpected event found: ", event, " with args: ", kv, " in\n", e)
	}
}

func MakeTopology(t *testing.T, maxNodes int, edges ...state.Edge) *state.Topology {
	t.Helper()
	topo, err := state.TopologyFromEdges(edges, maxNodes)
	if err != nil {
		t.Fatalf("bad topology: %v", err)
	}
	return topo
}

func E(from, to state.NodeId, cost int) state.Edge {
	return state.Edge{V1: from, V2: to, V3: cost}
}

// ShortestPaths is an all-pairs reference computed with Floyd-Warshall.
func ShortestPaths(costs state.Matrix, inf int) state.Matrix {
	n := costs.Size()
	d := state.NewMatrix(n, inf)
	for i := range n {
		for j := range n {
			if i == j {
				d[i][j] = 0
			} else if costs[i][j] != 0 {
				d[i][j] = min(costs[i][j], inf)
			}
		}
	}
	for k := range n {
		for i := range n {
			for j := range n {
				d[i][j] = min(d[i][j], AddCost(d[i][k], d[k][j], inf))
			}
		}
	}
	return d
}

// LoadNetwork creates the DV state of every node in topo.
func LoadNetwork(topo *state.Topology, inf int, tr Tracer) []*state.DVState {
	states := make([]*state.DVState, topo.Nodes)
	for i := range topo.Nodes {
		states[i] = NewDVState(state.NodeAt(i), inf, topo.Costs, tr)
	}
	return states
}

// SyncStep runs one synchronous round over in-memory states: every table is read before any
// node stores or relaxes. Returns the total number of changed entries.
func SyncStep(states []*state.DVState, tr Tracer) int {
	tables := make([]state.Matrix, len(states))
	for i, s := range states {
		tables[i] = s.Table()
	}
	for _, s := range states {
		for _, neigh := range s.Neighbours {
			StoreNeighbourDV(s, neigh, tables[neigh.Index()], tr)
		}
	}
	changed := 0
	for _, s := range states {
		changed += Relax(s, tr)
	}
	return changed
}

func OwnRows(states []*state.DVState) state.Matrix {
	m := make(state.Matrix, len(states))
	for i, s := range states {
		m[i] = slices.Clone(s.Own)
	}
	return m
}

func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
