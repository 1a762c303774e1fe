package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfluidics/syrinx"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of syrinx",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("syrinx version %s\n", syrinx.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
