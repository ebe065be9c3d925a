package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"overmind/internal/config"
	"overmind/internal/logging"
	"overmind/internal/sandbox"
)

var (
	// Global flags
	verbose     bool
	workspace   string
	searchPaths []string
	timeout     time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "overmind",
	Short: "overmind - planner factory for agent orchestration",
	Long: `overmind manages a registry of planner plugins for an agent platform.

Plugins are discovered from plugin directories, imported under a sandbox
with a deadline, ranked against objectives, and quarantined when they
misbehave. The planners command group exposes the registry.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The probe worker must stay silent apart from its own stderr.
		if cmd.Name() == sandbox.ProbeCommand {
			return nil
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("category logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "Workspace directory")
	rootCmd.PersistentFlags().StringSliceVarP(&searchPaths, "plugin-path", "p", []string{"planners"}, "Plugin search paths")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall command timeout")

	rootCmd.AddCommand(plannersCmd)
	rootCmd.AddCommand(probeCmd)
}

// factoryConfig resolves factory settings from defaults plus the
// OVERMIND_* environment surface.
func factoryConfig() config.FactoryConfig {
	return config.FactoryConfigFromEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
