package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/state"
	"github.com/spf13/cobra"
)

var (
	attach bool
	steps  int
)

// startController launches the nodes in-process, or attaches to nodes already serving on their
// configured endpoints. The returned func stops the controller, then closes the log file.
func startController(ctx context.Context, cfg *state.SimCfg, topo *state.Topology) (*core.Controller, func()) {
	log, closer := setup(cfg, "ctl")
	c, err := core.NewController(*cfg, topo, log)
	if err != nil {
		closer.Close()
		panic(err)
	}
	stop := shutdown(c, closer)
	if attach {
		err = c.Attach(ctx, directory(cfg, topo))
	} else {
		err = c.Start(ctx)
	}
	if err != nil {
		stop()
		exitOnErr(err)
	}
	return c, stop
}

// shutdown stops c, then closes the log it writes to, so nothing logged while stopping is lost.
func shutdown(c interface{ Stop() }, log io.Closer) func() {
	return func() {
		c.Stop()
		log.Close()
	}
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation until it is stable",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, topo := loadSim()
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		c, stop := startController(ctx, cfg, topo)
		defer stop()

		res, err := c.RunToStable(ctx)
		exitOnErr(err)
		printTables(os.Stdout, c)
		printResult(os.Stdout, res)
	},
	GroupID: "sim",
}

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Run a fixed number of simulation steps, printing the tables after each",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, topo := loadSim()
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		c, stop := startController(ctx, cfg, topo)
		defer stop()

		printTables(os.Stdout, c)
		for range steps {
			stepped, err := c.RunOneStep(ctx)
			exitOnErr(err)
			if !stepped {
				break
			}
			printTables(os.Stdout, c)
		}
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stepCmd)

	for _, cmd := range []*cobra.Command{runCmd, stepCmd, interactiveCmd} {
		cmd.Flags().BoolVarP(&attach, "attach", "a", false, "drive nodes started with \"dvsim node\" instead of launching them")
	}
	stepCmd.Flags().IntVarP(&steps, "steps", "n", 1, "number of steps to run")
}
