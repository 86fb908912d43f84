package protocol

import (
	"fmt"

	"github.com/encodeous/dvsim/state"
	"github.com/google/uuid"
)

// Kind selects the operation a node performs for a request.
type Kind int32

const (
	KindUnknown Kind = iota
	// GetDV asks for the node's DV table.
	GetDV
	// GetDVAndRoutingTable asks for the DV table and the routing table.
	GetDVAndRoutingTable
	// PullNeighbourVectors makes the node fetch every neighbour's DV table.
	PullNeighbourVectors
	// UpdateDV makes the node relax its DV table against the cached neighbour tables.
	UpdateDV
	// ChangeCost reloads the node from the cost matrix carried by the request.
	ChangeCost
)

func (k Kind) String() string {
	switch k {
	case GetDV:
		return "GET_DV"
	case GetDVAndRoutingTable:
		return "GET_DV_RT"
	case PullNeighbourVectors:
		return "PULL_NEIGHBOUR_DVS"
	case UpdateDV:
		return "UPDATE_DV"
	case ChangeCost:
		return "CHANGE_COST"
	default:
		return fmt.Sprintf("KIND(%d)", int32(k))
	}
}

func (k Kind) Valid() bool {
	return k >= GetDV && k <= ChangeCost
}

// Request is the single message a client writes on a connection.
type Request struct {
	Kind Kind
	// Id correlates both ends' logs, it has no protocol meaning.
	Id uuid.UUID
	// Costs is only set for ChangeCost.
	Costs state.Matrix
}

// Reply is the single message a node writes back. Acknowledgements echo Kind and Id with no tables.
type Reply struct {
	Kind         Kind
	Id           uuid.UUID
	DV           state.Matrix
	RoutingTable state.Matrix
}

func NewRequest(kind Kind) *Request {
	return &Request{Kind: kind, Id: uuid.New()}
}

func NewChangeCost(costs state.Matrix) *Request {
	req := NewRequest(ChangeCost)
	req.Costs = costs.Clone()
	return req
}

// Ack echoes the request.
func (r *Request) Ack() *Reply {
	return &Reply{Kind: r.Kind, Id: r.Id}
}

func (r *Request) String() string {
	return fmt.Sprintf("%s (req: %s)", r.Kind, r.Id)
}
