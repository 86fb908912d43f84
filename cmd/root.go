package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath   = DefaultConfigPath
	topologyPath string
	logPath      string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dvsim",
	Short: "Distance-vector routing simulator",
	Long: `dvsim runs a small network of simulated routers on the local host.
A controller paces the routers through synchronous Bellman-Ford rounds until their distance vectors stop changing, and can change link costs to watch the network re-converge.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Configure a Simulation",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "sim",
		Title: "Simulation Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "simulation config")
	rootCmd.PersistentFlags().StringVarP(&topologyPath, "topology", "t", "", "topology file of \"from to cost\" triples, overrides the config")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-path", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
