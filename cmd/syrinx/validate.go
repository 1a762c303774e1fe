package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfluidics/syrinx/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [topology-file]",
	Short: "Check a topology description for consistency",
	Long: `Parses the topology file and builds the graph, reporting duplicate
names, dangling links, port collisions and overfilled vessels.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(cmd, args); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Topology is valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path = cfg.Topology
	}

	graph, err := config.LoadTopology(path)
	if err != nil {
		return err
	}

	fmt.Printf("%d vessels, %d devices, %d links\n",
		len(graph.Vessels()), len(graph.Devices()), len(graph.Links()))
	return nil
}
