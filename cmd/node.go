package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/state"
	"github.com/spf13/cobra"
)

var nodeId int

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Serve a single node, to be driven by \"dvsim run --attach\"",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, topo := loadSim()
		id := state.NodeId(nodeId)
		if !topo.Contains(id) {
			exitOnErr(fmt.Errorf("%w: node %d, topology has %d nodes", state.ErrInvalidNode, id, topo.Nodes))
		}
		log, closer := setup(cfg, fmt.Sprintf("node-%d", id))
		defer closer.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		n := core.NewNode(*cfg, id, topo.Costs, log)
		err := n.Listen(cfg.NodeAddr(id))
		exitOnErr(err)
		n.Serve(directory(cfg, topo))

		select {
		case <-ctx.Done():
		case <-n.Context.Done():
			log.Error("node stopped", "reason", context.Cause(n.Context))
		}
		n.Stop()
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(nodeCmd)
	nodeCmd.Flags().IntVarP(&nodeId, "id", "i", 1, "id of the node to serve")
}
