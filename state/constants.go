package state

import "time"

const (
	// DefaultInfinity is the distance that means "no known path".
	DefaultInfinity = 16
	// DefaultBasePort is the port offset, node i listens on DefaultBasePort + i.
	DefaultBasePort = 1234
	DefaultAddress  = "127.0.0.1"
	DefaultMaxNodes = 6
	// MaxNodesLimit bounds max_nodes so a matrix always fits in one packet.
	MaxNodesLimit = 64
	// MaxCost keeps MaxCost*(MaxNodesLimit-1) well inside an int64.
	MaxCost = 1 << 30
)

var (
	DefaultDialTimeout    = time.Second * 3
	DefaultRequestTimeout = time.Second * 10

	// NeighbourWarnTTL is how long repeated pull failures for the same neighbour are logged at debug level
	NeighbourWarnTTL = time.Second * 30
	DispatchBuffer   = 32
	SlowDispatch     = time.Millisecond * 4
)
