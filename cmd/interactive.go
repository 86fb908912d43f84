package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/state"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

const (
	actionStep   = "Step"
	actionRun    = "Run until stable"
	actionCost   = "Change cost"
	actionTables = "Show tables"
	actionQuit   = "Quit"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i"},
	Short:   "Drive the simulation step by step from a menu",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, topo := loadSim()
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		c, stop := startController(ctx, cfg, topo)
		defer stop()
		printTables(os.Stdout, c)

		for ctx.Err() == nil {
			menu := promptui.Select{
				Label: fmt.Sprintf("Step %d (%s)", c.Steps(), c.Phase()),
				Items: []string{actionStep, actionRun, actionCost, actionTables, actionQuit},
				Size:  5,
			}
			_, action, err := menu.Run()
			if err != nil {
				if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
					return
				}
				panic(err)
			}

			switch action {
			case actionStep:
				stepped, err := c.RunOneStep(ctx)
				if err != nil {
					fmt.Println("Error:", err.Error())
					continue
				}
				if !stepped {
					fmt.Println("The simulation is already stable.")
				}
				printTables(os.Stdout, c)
			case actionRun:
				res, err := c.RunToStable(ctx)
				if err != nil {
					fmt.Println("Error:", err.Error())
					continue
				}
				printTables(os.Stdout, c)
				printResult(os.Stdout, res)
			case actionCost:
				changeCost(ctx, c)
			case actionTables:
				printTables(os.Stdout, c)
			case actionQuit:
				return
			}
		}
	},
	GroupID: "sim",
}

func changeCost(ctx context.Context, c *core.Controller) {
	topo := c.Topology()
	from, ok := promptNode("from node", topo)
	if !ok {
		return
	}
	to, ok := promptNode("to node", topo)
	if !ok {
		return
	}
	cost, ok := promptInt("cost (0 removes the link)", fmt.Sprint(topo.Costs[from.Index()][to.Index()]), 0, state.MaxCost)
	if !ok {
		return
	}
	err := c.ChangeCost(ctx, from, to, cost)
	if err != nil {
		fmt.Println("Cost not changed:", err.Error())
		return
	}
	printTables(os.Stdout, c)
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}
