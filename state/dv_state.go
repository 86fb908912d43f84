package state

// DVState is one node's distance vector state. It is owned by the node's main loop and must
// only be touched from dispatched functions.
type DVState struct {
	Id NodeId
	N  int
	// BaseInfinity is the configured sentinel, Infinity the one in effect for Costs.
	BaseInfinity int
	Infinity     int
	Costs    Matrix
	// Own is the authoritative distance from Id to every node, used for routing decisions.
	Own []int
	// NextHop records the neighbour achieving Own[to], 0 when unknown.
	NextHop []int
	// Derived holds the other nodes' rows as copied forward from neighbours. Display only,
	// row Id is never read.
	Derived     Matrix
	Neighbours  []NodeId
	NeighbourDV []Matrix
}

// Table composes the full N×N DV table with Own as row Id.
func (s *DVState) Table() Matrix {
	t := s.Derived.Clone()
	copy(t[s.Id.Index()], s.Own)
	return t
}

// RoutingTable returns an N×N table where only row Id is populated with next hops.
func (s *DVState) RoutingTable() Matrix {
	rt := NewMatrix(s.N, 0)
	copy(rt[s.Id.Index()], s.NextHop)
	return rt
}

func (s *DVState) Distance(to NodeId) int {
	return s.Own[to.Index()]
}

// NeighbourSlot returns the cache slot of a neighbour, or -1.
func (s *DVState) NeighbourSlot(id NodeId) int {
	for i, n := range s.Neighbours {
		if n == id {
			return i
		}
	}
	return -1
}
