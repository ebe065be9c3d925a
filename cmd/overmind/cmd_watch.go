package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"overmind/internal/factory"
	"overmind/internal/watch"
)

// plannersWatchCmd keeps the registry live against on-disk plugin edits
// until interrupted.
var plannersWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch plugin paths and refresh metadata on changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := factory.New(factoryConfig())
		defer f.Close()

		n := f.Discover(cmd.Context(), searchPaths)
		fmt.Printf("Watching %v (%d planner(s) registered). Ctrl-C to stop.\n", searchPaths, n)

		pw, err := watch.NewPluginWatcher(searchPaths, f)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := pw.Start(cmd.Context()); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer pw.Stop()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("watch stopped", zap.String("signal", sig.String()))
		case <-cmd.Context().Done():
		}

		stats := pw.Stats()
		fmt.Printf("Saw %d event(s), triggered %d refresh(es).\n", stats.EventsSeen, stats.RefreshesTriggers)
		return nil
	},
}

func init() {
	plannersCmd.AddCommand(plannersWatchCmd)
}
