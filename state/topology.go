package state

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Edge is a (from, to, cost) triple as written in a topology file.
type Edge = Triple[NodeId, NodeId, int]

// Topology is the symmetric cost matrix of a simulation run. A zero entry means "no direct link".
type Topology struct {
	Nodes int
	Costs Matrix
}

// TopologyFromEdges builds a topology over maxNodes slots, each edge setting both directions.
// The node count is the largest id referenced.
func TopologyFromEdges(edges []Edge, maxNodes int) (*Topology, error) {
	if len(edges) == 0 {
		return nil, ErrEmptyTopology
	}
	costs := NewMatrix(maxNodes, 0)
	nodes := 0
	for _, e := range edges {
		if e.V1 < 1 || int(e.V1) > maxNodes || e.V2 < 1 || int(e.V2) > maxNodes {
			return nil, fmt.Errorf("%w: edge %d-%d, max %d", ErrInvalidNode, e.V1, e.V2, maxNodes)
		}
		if e.V3 < 0 || e.V3 > MaxCost {
			return nil, fmt.Errorf("%w: edge %d-%d has cost %d", ErrInvalidCost, e.V1, e.V2, e.V3)
		}
		if e.V1 == e.V2 {
			if e.V3 != 0 {
				return nil, fmt.Errorf("%w: node %d", ErrSelfCost, e.V1)
			}
			continue
		}
		costs[e.V1.Index()][e.V2.Index()] = e.V3
		costs[e.V2.Index()][e.V1.Index()] = e.V3
		nodes = max(nodes, int(e.V1), int(e.V2))
	}
	t := &Topology{Nodes: nodes, Costs: NewMatrix(nodes, 0)}
	for i := range nodes {
		copy(t.Costs[i], costs[i][:nodes])
	}
	return t, nil
}

// ParseTopology reads whitespace separated "from to cost" triples.
func ParseTopology(r io.Reader, maxNodes int) (*Topology, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	edges := make([]Edge, 0)
	var triple [3]int
	pos := 0
	for sc.Scan() {
		v, err := strconv.Atoi(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("topology: token %q after %d edges is not an integer", sc.Text(), len(edges))
		}
		triple[pos] = v
		pos++
		if pos == 3 {
			edges = append(edges, Edge{V1: NodeId(triple[0]), V2: NodeId(triple[1]), V3: triple[2]})
			pos = 0
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if pos != 0 {
		return nil, fmt.Errorf("topology: trailing incomplete triple after %d edges", len(edges))
	}
	return TopologyFromEdges(edges, maxNodes)
}

func (t *Topology) Clone() *Topology {
	return &Topology{Nodes: t.Nodes, Costs: t.Costs.Clone()}
}

func (t *Topology) Contains(id NodeId) bool {
	return id >= 1 && int(id) <= t.Nodes
}

// Neighbours returns the ids directly linked to id, in ascending order.
func (t *Topology) Neighbours(id NodeId) []NodeId {
	return NeighboursOf(t.Costs, id)
}

// Links lists every undirected link once, ordered by endpoints.
func (t *Topology) Links() []Pair[NodeId, NodeId] {
	links := make([]Pair[NodeId, NodeId], 0)
	for i := range t.Nodes {
		for j := i + 1; j < t.Nodes; j++ {
			if t.Costs[i][j] != 0 {
				links = append(links, Pair[NodeId, NodeId]{NodeAt(i), NodeAt(j)})
			}
		}
	}
	SortPairs(links)
	return links
}

// SetCost updates both directions of a link. Nothing is modified when the input is invalid.
func (t *Topology) SetCost(from, to NodeId, cost int) error {
	if !t.Contains(from) || !t.Contains(to) {
		return fmt.Errorf("%w: %d-%d, have %d nodes", ErrInvalidNode, from, to, t.Nodes)
	}
	if from == to {
		return fmt.Errorf("%w: node %d", ErrSelfCost, from)
	}
	if cost < 0 || cost > MaxCost {
		return fmt.Errorf("%w: got %d", ErrInvalidCost, cost)
	}
	t.Costs[from.Index()][to.Index()] = cost
	t.Costs[to.Index()][from.Index()] = cost
	return nil
}

// EffectiveInfinity returns the unreachable sentinel for a cost matrix: base, raised above the
// longest possible simple path maxEdge*(N-1) when the matrix needs it.
func EffectiveInfinity(base int, costs Matrix) int {
	maxEdge := 0
	for _, row := range costs {
		for _, c := range row {
			maxEdge = max(maxEdge, c)
		}
	}
	return max(base, maxEdge*max(costs.Size()-1, 0)+1)
}

// NeighboursOf derives the neighbour set of id from a cost matrix.
func NeighboursOf(costs Matrix, id NodeId) []NodeId {
	neighs := make([]NodeId, 0)
	for j, c := range costs[id.Index()] {
		if c != 0 && j != id.Index() {
			neighs = append(neighs, NodeAt(j))
		}
	}
	return neighs
}
