package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimConfigValidator_Defaults(t *testing.T) {
	cfg := DefaultSimCfg()
	assert.NoError(t, SimConfigValidator(&cfg))
	cfg.BasePort = 0
	assert.NoError(t, SimConfigValidator(&cfg))
}

func TestSimConfigValidator_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SimCfg)
	}{
		{"address", func(c *SimCfg) { c.Address = "localhost" }},
		{"no nodes", func(c *SimCfg) { c.MaxNodes = 0 }},
		{"too many nodes", func(c *SimCfg) { c.MaxNodes = MaxNodesLimit + 1 }},
		{"port range", func(c *SimCfg) { c.BasePort = 65530 }},
		{"infinity", func(c *SimCfg) { c.Infinity = 0 }},
		{"timeout", func(c *SimCfg) { c.RequestTimeout = -1 }},
		{"log path", func(c *SimCfg) { c.LogPath = "/does/not/exist/dvsim.log" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimCfg()
			tt.modify(&cfg)
			assert.ErrorIs(t, SimConfigValidator(&cfg), ErrInvalidCfg)
		})
	}
}

func TestTopologyValidator_LongLine(t *testing.T) {
	cfg := DefaultSimCfg()
	topo, err := TopologyFromEdges([]Edge{
		{V1: 1, V2: 2, V3: 1}, {V1: 2, V2: 3, V3: 1}, {V1: 3, V2: 4, V3: 1},
		{V1: 4, V2: 5, V3: 1}, {V1: 5, V2: 6, V3: 4},
	}, cfg.MaxNodes)
	assert.NoError(t, err)
	assert.NoError(t, TopologyValidator(&cfg, topo))
	assert.Equal(t, 21, EffectiveInfinity(cfg.Infinity, topo.Costs))
}

func TestCostMatrixValidator(t *testing.T) {
	assert.NoError(t, CostMatrixValidator(Matrix{{0, 1}, {1, 0}}))
	assert.ErrorIs(t, CostMatrixValidator(Matrix{{0, MaxCost + 1}, {MaxCost + 1, 0}}), ErrInvalidCost)
	assert.ErrorIs(t, CostMatrixValidator(Matrix{{0, 1}, {1}}), ErrMatrixShape)
	assert.ErrorIs(t, CostMatrixValidator(Matrix{{1, 1}, {1, 0}}), ErrSelfCost)
	assert.ErrorIs(t, CostMatrixValidator(Matrix{{0, -1}, {-1, 0}}), ErrInvalidCost)
	assert.ErrorIs(t, CostMatrixValidator(Matrix{{0, 1}, {2, 0}}), ErrNotSymmetric)
}

func TestTopologyValidator(t *testing.T) {
	cfg := DefaultSimCfg()
	topo, err := TopologyFromEdges([]Edge{{V1: 1, V2: 2, V3: 5}, {V1: 2, V2: 3, V3: 7}}, cfg.MaxNodes)
	assert.NoError(t, err)
	assert.NoError(t, TopologyValidator(&cfg, topo))

	// link costs are not bounded by the configured infinity
	assert.NoError(t, topo.SetCost(2, 3, 40))
	assert.NoError(t, TopologyValidator(&cfg, topo))

	cfg.MaxNodes = 2
	assert.ErrorIs(t, TopologyValidator(&cfg, topo), ErrTooManyNodes)

	assert.ErrorIs(t, TopologyValidator(&cfg, &Topology{Nodes: 2, Costs: NewMatrix(3, 0)}), ErrMatrixShape)
}
