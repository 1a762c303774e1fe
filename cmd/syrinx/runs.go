package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfluidics/syrinx/pkg/ports"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage recorded monitoring runs",
	Long:  `List, inspect, and remove run records persisted by the control daemon.`,
}

var runsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all recorded runs",
	Run: func(cmd *cobra.Command, args []string) {
		store := getRunStore(cmd)
		ids, err := store.List(cmd.Context())
		if err != nil {
			fmt.Printf("Error listing runs: %v\n", err)
			os.Exit(1)
		}

		if len(ids) == 0 {
			fmt.Println("No runs recorded.")
			return
		}

		fmt.Println("Recorded runs:")
		for _, id := range ids {
			fmt.Println("- " + id)
		}
	},
}

var runsInspectCmd = &cobra.Command{
	Use:   "inspect <run-id>",
	Short: "Inspect one run record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := getRunStore(cmd)
		rec, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error loading run '%s': %v\n", args[0], err)
			os.Exit(1)
		}
		printJSON(rec)
	},
}

var runsRmCmd = &cobra.Command{
	Use:   "rm <run-id>...",
	Short: "Remove one or more run records",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := getRunStore(cmd)
		hasError := false

		for _, id := range args {
			if err := store.Delete(cmd.Context(), id); err != nil {
				fmt.Printf("Error removing '%s': %v\n", id, err)
				hasError = true
			} else {
				fmt.Printf("Removed run '%s'\n", id)
			}
		}

		if hasError {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsLsCmd)
	runsCmd.AddCommand(runsInspectCmd)
	runsCmd.AddCommand(runsRmCmd)
}

func getRunStore(cmd *cobra.Command) ports.RunStore {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	store := buildStore(cfg)
	if store == nil {
		fmt.Println("Run inspection needs a shared store; set store.backend to redis.")
		os.Exit(1)
	}
	return store
}
