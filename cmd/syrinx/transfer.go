package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/openfluidics/syrinx/internal/logging"
)

// transferCmd represents the transfer command
var transferCmd = &cobra.Command{
	Use:   "transfer <source> <target> <volume-ml>",
	Short: "Run one vessel-to-vessel transfer",
	Long: `Plans and executes a single transfer against the configured rig,
then prints the outcome. With --plan the command stops after routing and
prints the cycle plan without touching the hardware.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		volume, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			fmt.Printf("Error: volume must be a number, got %q\n", args[2])
			os.Exit(1)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		logger := logging.New(parseLevel(cfg.LogLevel))

		eng, err := buildEngine(cfg, logger)
		if err != nil {
			fmt.Printf("Error initializing syrinx: %v\n", err)
			os.Exit(1)
		}
		defer eng.Close()

		planOnly, _ := cmd.Flags().GetBool("plan")
		if planOnly {
			plan, err := eng.PlanTransfer(args[0], args[1], volume)
			if err != nil {
				fmt.Printf("Planning failed: %v\n", err)
				os.Exit(1)
			}
			printJSON(plan)
			return
		}

		outcome, err := eng.Transfer(cmd.Context(), args[0], args[1], volume)
		if err != nil {
			fmt.Printf("Transfer failed: %v\n", err)
			printJSON(outcome)
			os.Exit(1)
		}
		printJSON(outcome)
	},
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func init() {
	rootCmd.AddCommand(transferCmd)
	transferCmd.Flags().Bool("plan", false, "Print the cycle plan without actuating")
}
