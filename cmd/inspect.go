package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/protocol"
	"github.com/encodeous/dvsim/state"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect <node id>",
	Aliases: []string{"table"},
	Short:   "Prints the tables of a running node",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println("Usage: dvsim inspect <node id>")
			return
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		cfg, topo := loadSim()
		id := state.NodeId(v)
		addr := cfg.NodeAddr(id)
		reply, err := core.Call(context.Background(), addr, protocol.NewRequest(protocol.GetDVAndRoutingTable), core.TimeoutsOf(*cfg))
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		fmt.Print(core.RenderTables(id, addr, reply.DV, reply.RoutingTable, state.EffectiveInfinity(cfg.Infinity, topo.Costs)))
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
