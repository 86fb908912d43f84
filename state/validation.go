package state

import (
	"fmt"
	"net/netip"
	"os"
	"path"
	"path/filepath"
)

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func AddrValidator(s string) error {
	_, err := netip.ParseAddr(s)
	return err
}

func SimConfigValidator(cfg *SimCfg) error {
	if err := AddrValidator(cfg.Address); err != nil {
		return fmt.Errorf("%w: address: %w", ErrInvalidCfg, err)
	}
	if cfg.MaxNodes < 1 || cfg.MaxNodes > MaxNodesLimit {
		return fmt.Errorf("%w: max_nodes must be in [1, %d], got %d", ErrInvalidCfg, MaxNodesLimit, cfg.MaxNodes)
	}
	if cfg.BasePort != 0 && int(cfg.BasePort)+cfg.MaxNodes > 65535 {
		return fmt.Errorf("%w: base_port %d leaves no room for %d nodes", ErrInvalidCfg, cfg.BasePort, cfg.MaxNodes)
	}
	if cfg.Infinity <= 0 {
		return fmt.Errorf("%w: infinity must be positive, got %d", ErrInvalidCfg, cfg.Infinity)
	}
	if cfg.DialTimeout < 0 || cfg.RequestTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidCfg)
	}
	if cfg.LogPath != "" {
		if err := PathValidator(cfg.LogPath); err != nil {
			return fmt.Errorf("%w: log_path: %w", ErrInvalidCfg, err)
		}
	}
	return nil
}

// CostMatrixValidator checks a cost matrix is square, symmetric, within [0, MaxCost] and has a zero diagonal.
func CostMatrixValidator(costs Matrix) error {
	if !costs.Square() {
		return ErrMatrixShape
	}
	for i := range costs {
		if costs[i][i] != 0 {
			return fmt.Errorf("%w: node %d", ErrSelfCost, i+1)
		}
		for j := range costs[i] {
			if costs[i][j] < 0 || costs[i][j] > MaxCost {
				return fmt.Errorf("%w: %d-%d is %d", ErrInvalidCost, i+1, j+1, costs[i][j])
			}
			if costs[i][j] != costs[j][i] {
				return fmt.Errorf("%w: %d-%d is %d, %d-%d is %d", ErrNotSymmetric, i+1, j+1, costs[i][j], j+1, i+1, costs[j][i])
			}
		}
	}
	return nil
}

// TopologyValidator checks the topology fits the config. Link costs are not bounded by the
// configured infinity, see EffectiveInfinity.
func TopologyValidator(cfg *SimCfg, topo *Topology) error {
	if topo.Nodes < 1 || topo.Costs.Size() != topo.Nodes {
		return fmt.Errorf("%w: %d nodes, %d rows", ErrMatrixShape, topo.Nodes, topo.Costs.Size())
	}
	if topo.Nodes > cfg.MaxNodes {
		return fmt.Errorf("%w: %d > %d", ErrTooManyNodes, topo.Nodes, cfg.MaxNodes)
	}
	return CostMatrixValidator(topo.Costs)
}
