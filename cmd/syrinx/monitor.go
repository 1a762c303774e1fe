package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openfluidics/syrinx/internal/adapters/mqtt"
	"github.com/openfluidics/syrinx/internal/logging"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Tail analytical measurements from the broker",
	Long: `Subscribes to the configured MQTT measurement topic and prints one
line per reading until interrupted. Useful for checking an instrument
pipeline before starting a monitored phase.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if cfg.MQTT.Broker == "" {
			fmt.Println("No broker configured; set mqtt.broker in the config file.")
			os.Exit(1)
		}
		logger := logging.New(parseLevel(cfg.LogLevel))

		source := mqtt.New(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic, mqtt.WithLogger(logger))
		if err := source.Connect(); err != nil {
			fmt.Printf("Error connecting to broker: %v\n", err)
			os.Exit(1)
		}
		defer source.Close()

		// Cancel on interrupt so the subscription detaches cleanly.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for {
			m, err := source.Sample(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				fmt.Printf("Error reading measurement: %v\n", err)
				os.Exit(1)
			}
			if m.Label != "" {
				fmt.Printf("%s  %s=%g %s\n", m.TakenAt.Format("15:04:05"), m.Label, m.Value, m.Unit)
			} else {
				fmt.Printf("%s  %g %s\n", m.TakenAt.Format("15:04:05"), m.Value, m.Unit)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
