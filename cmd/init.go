package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/encodeous/dvsim/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a simulation config",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := state.DefaultSimCfg()
		cfg.Address = promptDefaultStr("node address", cfg.Address, state.AddrValidator)
		port, err := strconv.Atoi(promptDefaultStr("base port", strconv.Itoa(int(cfg.BasePort)), intValidator(0, 65535-state.MaxNodesLimit)))
		if err != nil {
			panic(err)
		}
		cfg.BasePort = uint16(port)
		cfg.MaxNodes, err = strconv.Atoi(promptDefaultStr("max nodes", strconv.Itoa(cfg.MaxNodes), intValidator(1, state.MaxNodesLimit)))
		if err != nil {
			panic(err)
		}
		cfg.Infinity, err = strconv.Atoi(promptDefaultStr("infinity", strconv.Itoa(cfg.Infinity), intValidator(1, 1<<30)))
		if err != nil {
			panic(err)
		}
		if promptYN("Read the topology from a file?", true) {
			cfg.Topology = promptDefaultStr("topology file", "topology.txt", state.PathValidator)
		} else {
			// the three node example, edit the config to change it
			cfg.Edges = [][]int{{1, 2, 1}, {2, 3, 1}, {1, 3, 5}}
		}

		err = state.SimConfigValidator(&cfg)
		if err != nil {
			panic(err)
		}
		out, err := yaml.Marshal(&cfg)
		if err != nil {
			panic(err)
		}
		path := safeSaveFile(configPath, "config")
		err = os.WriteFile(path, out, 0600)
		if err != nil {
			panic(err)
		}
		fmt.Printf("Saved config to %s\n", path)
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(initCmd)
}
