package main

import (
	"fmt"
	"os"

	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openfluidics/syrinx"
	"github.com/openfluidics/syrinx/internal/adapters/redis"
	"github.com/openfluidics/syrinx/internal/config"
	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/ports"
	"github.com/openfluidics/syrinx/pkg/serial"
)

var rootCmd = &cobra.Command{
	Use:   "syrinx",
	Short: "Syrinx is a fluidic automation control core",
	Long: `Syrinx drives laboratory rigs built from pumps, valves and vessels.
It routes volume transfers over a typed topology graph, speaks the shared
serial bus protocol, and monitors closed-loop reaction phases.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "syrinx.yaml", "Path to the daemon configuration file")
}

func loadConfig(cmd *cobra.Command) (config.Service, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadService(path)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildStore(cfg config.Service) ports.RunStore {
	if cfg.Store.Backend == "redis" {
		return redis.New(cfg.Store.Address, cfg.Store.Password, cfg.Store.DB)
	}
	return nil // Engine falls back to the in-memory store.
}

// buildEngine wires an Engine from the daemon configuration. With
// serial.simulate set, every bus points at one in-process simulated rig.
func buildEngine(cfg config.Service, logger *slog.Logger) (*syrinx.Engine, error) {
	graph, err := config.LoadTopology(cfg.Topology)
	if err != nil {
		return nil, fmt.Errorf("failed to load topology: %w", err)
	}

	opts := []syrinx.Option{syrinx.WithLogger(logger)}
	if store := buildStore(cfg); store != nil {
		opts = append(opts, syrinx.WithRunStore(store))
	}
	opts = append(opts, syrinx.WithSerialOptions(
		serial.WithTimeout(cfg.Serial.Timeout),
		serial.WithRetries(cfg.Serial.Retries),
		serial.WithBackoff(cfg.Serial.Backoff),
	))

	if cfg.Serial.Simulate {
		eng, _, err := syrinx.SimulatedEngine(graph, subsystemsOf(graph.Devices()), opts...)
		return eng, err
	}

	eng, err := syrinx.NewFromGraph(graph, opts...)
	if err != nil {
		return nil, err
	}
	logger.Warn("no bus transport configured; actuation will fail until one is attached " +
		"(set serial.simulate for a dry run)")
	return eng, nil
}

func subsystemsOf(devices []*domain.Device) []string {
	var names []string
	seen := make(map[string]bool)
	for _, d := range devices {
		if d.Subsystem != "" && !seen[d.Subsystem] {
			seen[d.Subsystem] = true
			names = append(names, d.Subsystem)
		}
	}
	return names
}
