package state

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// SimCfg is the simulation-wide configuration shared by the controller and every node.
type SimCfg struct {
	Address        string        `yaml:"address"`                   // loopback-style host every node listens on
	BasePort       uint16        `yaml:"base_port"`                 // node i listens on BasePort + i, 0 picks ephemeral ports
	MaxNodes       int           `yaml:"max_nodes"`                 // upper bound on node ids
	Infinity       int           `yaml:"infinity"`                  // distance meaning "unreachable"
	DialTimeout    time.Duration `yaml:"dial_timeout,omitempty"`    // 0 waits for the OS
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"` // 0 waits forever for a reply
	Topology       string        `yaml:"topology,omitempty"`        // path to a "from to cost" triples file
	Edges          [][]int       `yaml:"edges,omitempty"`           // inline triples, used when Topology is empty
	LogPath        string        `yaml:"log_path,omitempty"`        // if not empty, logs are also written here
}

func DefaultSimCfg() SimCfg {
	return SimCfg{
		Address:        DefaultAddress,
		BasePort:       DefaultBasePort,
		MaxNodes:       DefaultMaxNodes,
		Infinity:       DefaultInfinity,
		DialTimeout:    DefaultDialTimeout,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// ReadSimCfg loads path over the defaults. A missing file yields the defaults.
func ReadSimCfg(path string) (*SimCfg, error) {
	cfg := DefaultSimCfg()
	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, err
	}
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// NodeAddr returns the deterministic endpoint of a node.
func (c *SimCfg) NodeAddr(id NodeId) string {
	port := 0
	if c.BasePort != 0 {
		port = int(c.BasePort) + int(id)
	}
	return netip.AddrPortFrom(netip.MustParseAddr(c.Address), uint16(port)).String()
}

// InlineEdges converts the inline edge list into topology edges.
func (c *SimCfg) InlineEdges() ([]Edge, error) {
	edges := make([]Edge, 0, len(c.Edges))
	for i, e := range c.Edges {
		if len(e) != 3 {
			return nil, fmt.Errorf("%w: edge #%d must have 3 values, got %d", ErrInvalidCfg, i, len(e))
		}
		edges = append(edges, Edge{V1: NodeId(e[0]), V2: NodeId(e[1]), V3: e[2]})
	}
	return edges, nil
}

// LoadTopology reads the topology referenced by the config, preferring the file over inline edges.
func (c *SimCfg) LoadTopology() (*Topology, error) {
	if c.Topology != "" {
		f, err := os.Open(c.Topology)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ParseTopology(f, c.MaxNodes)
	}
	edges, err := c.InlineEdges()
	if err != nil {
		return nil, err
	}
	return TopologyFromEdges(edges, c.MaxNodes)
}
