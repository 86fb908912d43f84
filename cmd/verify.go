package cmd

import (
	"fmt"

	"github.com/encodeous/dvsim/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validates the config and topology, then prints them",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, topo := loadSim()

		cfgYaml, err := yaml.Marshal(cfg)
		if err != nil {
			panic(err)
		}

		fmt.Println("Config is valid")
		fmt.Println(string(cfgYaml))
		fmt.Printf("%d nodes, links:\n", topo.Nodes)
		for _, link := range topo.Links() {
			fmt.Printf("\t%d <-> %d\tcost %d\n", link.V1, link.V2, topo.Costs[link.V1.Index()][link.V2.Index()])
		}
		if inf := state.EffectiveInfinity(cfg.Infinity, topo.Costs); inf != cfg.Infinity {
			fmt.Printf("Links are long for infinity %d, this run treats %d as unreachable\n", cfg.Infinity, inf)
		}
		fmt.Println("Cost matrix:")
		fmt.Print(topo.Costs.Render(0))
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
