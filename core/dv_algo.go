package core

import (
	"fmt"

	"github.com/encodeous/dvsim/state"
)

type DVEvent int

// trace events

const (
	DistanceImproved DVEvent = iota
	NextHopChanged
	StateReloaded
)

// warn events

const (
	StaleNeighbourSlot DVEvent = iota + 1000
)

func (e DVEvent) String() string {
	switch e {
	case DistanceImproved:
		return "DISTANCE_IMPROVED"
	case NextHopChanged:
		return "NEXT_HOP_CHANGED"
	case StateReloaded:
		return "STATE_RELOADED"
	case StaleNeighbourSlot:
		return "STALE_NEIGHBOUR_SLOT"
	default:
		return fmt.Sprintf("EVENT(%d)", int(e))
	}
}

// Tracer receives algorithm events, it must not mutate the state.
type Tracer interface {
	Log(event DVEvent, desc string, args ...any)
}

// NewDVState creates the state of node id and loads it from costs.
func NewDVState(id state.NodeId, inf int, costs state.Matrix, t Tracer) *state.DVState {
	s := &state.DVState{
		Id:           id,
		BaseInfinity: inf,
	}
	Reload(s, costs, t)
	return s
}

// Reload cold-starts the node from a cost matrix: everything learned so far is dropped and
// only direct links are known afterwards. The matrix is copied and the infinity in effect is
// recomputed from it. A matrix of the wrong shape is
// a contract violation and panics.
func Reload(s *state.DVState, costs state.Matrix, t Tracer) {
	n := costs.Size()
	if n == 0 || !costs.Square() || s.Id < 1 || int(s.Id) > n {
		panic(fmt.Sprintf("reload: node %d cannot load a %d-row cost matrix", s.Id, n))
	}
	self := s.Id.Index()

	s.N = n
	s.Costs = costs.Clone()
	s.Infinity = state.EffectiveInfinity(s.BaseInfinity, s.Costs)
	s.Neighbours = state.NeighboursOf(s.Costs, s.Id)

	s.Derived = state.NewMatrix(n, s.Infinity)
	s.Own = make([]int, n)
	s.NextHop = make([]int, n)
	for i := range n {
		s.Derived[i][i] = 0
		s.Own[i] = s.Infinity
	}
	s.Own[self] = 0
	s.NextHop[self] = int(s.Id) // next hop is self

	for _, neigh := range s.Neighbours {
		s.Own[neigh.Index()] = min(s.Costs[self][neigh.Index()], s.Infinity)
		s.NextHop[neigh.Index()] = int(neigh)
	}

	s.NeighbourDV = make([]state.Matrix, len(s.Neighbours))
	for i := range s.NeighbourDV {
		s.NeighbourDV[i] = state.NewMatrix(n, s.Infinity)
	}
	t.Log(StateReloaded, "cold start", "node", s.Id, "neighbours", s.Neighbours, "infinity", s.Infinity)
}

// StoreNeighbourDV replaces the cached table of a neighbour. Tables for nodes that are no longer
// neighbours, or of the wrong size, are dropped and reported.
func StoreNeighbourDV(s *state.DVState, neigh state.NodeId, dv state.Matrix, t Tracer) bool {
	slot := s.NeighbourSlot(neigh)
	if slot == -1 || dv.Size() != s.N || !dv.Square() {
		t.Log(StaleNeighbourSlot, "dropped neighbour table", "node", s.Id, "neigh", neigh, "size", dv.Size())
		return false
	}
	s.NeighbourDV[slot] = dv.Clone()
	return true
}

// Relax performs one Bellman-Ford relaxation against the cached neighbour tables and returns
// the number of entries that changed. Distances never increase.
func Relax(s *state.DVState, t Tracer) int {
	self := s.Id.Index()
	changed := 0

	for from := range s.N {
		for to := range s.N {
			if from == to {
				if from == self {
					s.Own[to] = 0
				} else {
					s.Derived[from][to] = 0
				}
				continue
			}

			if from == self {
				// D(self, to) = min over neighbours k of C(self, k) + D_k(k, to)
				best := s.Own[to]
				nh := s.NextHop[to]
				for i, neigh := range s.Neighbours {
					k := neigh.Index()
					cand := AddCost(s.Costs[self][k], s.NeighbourDV[i][k][to], s.Infinity)
					if cand < best {
						best = cand
						nh = int(neigh)
					}
				}
				if best < s.Own[to] {
					t.Log(DistanceImproved, "shorter path", "node", s.Id, "to", state.NodeAt(to), "old", s.Own[to], "new", best, "via", nh)
					changed++
				}
				if nh != s.NextHop[to] {
					t.Log(NextHopChanged, "next hop changed", "node", s.Id, "to", state.NodeAt(to), "old", s.NextHop[to], "new", nh)
				}
				s.Own[to] = best
				s.NextHop[to] = nh
			} else {
				// rows of other nodes are copied forward for display only
				best := s.Derived[from][to]
				for i := range s.Neighbours {
					best = min(best, s.NeighbourDV[i][from][to])
				}
				if best != s.Derived[from][to] {
					changed++
				}
				s.Derived[from][to] = best
			}
		}
	}
	return changed
}
