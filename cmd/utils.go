package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/state"
)

const DefaultConfigPath = "dvsim.yaml"

// loadSim reads the config, applies flag overrides and loads the topology. Both are validated.
func loadSim() (*state.SimCfg, *state.Topology) {
	cfg, err := state.ReadSimCfg(configPath)
	if err != nil {
		panic(err)
	}
	if topologyPath != "" {
		cfg.Topology = topologyPath
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}
	err = state.SimConfigValidator(cfg)
	if err != nil {
		panic(err)
	}
	topo, err := cfg.LoadTopology()
	if err != nil {
		panic(err)
	}
	err = state.TopologyValidator(cfg, topo)
	if err != nil {
		panic(err)
	}
	return cfg, topo
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// setup builds the logger for a component and installs the metrics sink.
func setup(cfg *state.SimCfg, component string) (*slog.Logger, io.Closer) {
	log, closer, err := core.NewLogger(component, logLevel(), cfg.LogPath)
	if err != nil {
		panic(err)
	}
	_, err = core.SetupMetrics("dvsim")
	if err != nil {
		log.Warn("metrics are disabled", "err", err)
	}
	return log, closer
}

// directory returns the deterministic endpoint of every node in topo.
func directory(cfg *state.SimCfg, topo *state.Topology) map[state.NodeId]string {
	dir := make(map[state.NodeId]string)
	for i := range topo.Nodes {
		id := state.NodeAt(i)
		dir[id] = cfg.NodeAddr(id)
	}
	return dir
}

func printTables(w io.Writer, c *core.Controller) {
	snap := c.Snapshot()
	rts := c.RoutingTables()
	for i, node := range c.Nodes() {
		fmt.Fprintln(w, core.RenderTables(node.Id, node.Addr, snap[i], rts[i], c.Infinity()))
	}
	fmt.Fprintf(w, "Step %d, %s\n", c.Steps(), c.Phase())
}

func printResult(w io.Writer, res core.RunResult) {
	fmt.Fprintf(w, "Reached a stable state after %d steps in %s\n", res.Steps, res.Elapsed)
}

func exitOnErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		os.Exit(1)
	}
}
