package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"overmind/internal/factory"
	"overmind/internal/logging"
	"overmind/internal/ranking"
)

var (
	selectCapabilities []string
	selectIndexSummary string
	selectHotspots     int
	listQuarantined    bool
	healthMinRequired  int
	diagnosticsOut     string
	outputJSON         bool
)

// plannersCmd groups registry operations.
var plannersCmd = &cobra.Command{
	Use:   "planners",
	Short: "Manage the planner plugin registry",
}

var plannersDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan plugin paths and register planners",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		f := factory.New(factoryConfig())
		defer f.Close()

		n := f.Discover(ctx, searchPaths)
		fmt.Printf("Discovered %d planner(s) from %s\n", n, strings.Join(searchPaths, ", "))

		for _, rec := range f.ListPlanners(true) {
			marker := "✓"
			if rec.Status != factory.StatusActive {
				marker = "✗"
			}
			fmt.Printf("  %s %-24s %-12s tier=%-12s reliability=%.2f\n",
				marker, rec.Name, rec.Status, rec.Tier, rec.ReliabilityScore)
		}
		return nil
	},
}

var plannersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered planners",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		f := factory.New(factoryConfig())
		defer f.Close()
		f.Discover(ctx, searchPaths)

		records := f.ListPlanners(listQuarantined)
		if outputJSON {
			return printJSON(records)
		}
		if len(records) == 0 {
			fmt.Println("No planners registered.")
			return nil
		}

		fmt.Printf("%-24s %-12s %-12s %-11s %s\n", "NAME", "STATUS", "TIER", "RELIABILITY", "CAPABILITIES")
		for _, rec := range records {
			fmt.Printf("%-24s %-12s %-12s %-11.2f %s\n",
				rec.Name, rec.Status, rec.Tier, rec.ReliabilityScore,
				strings.Join(rec.Capabilities, ","))
		}
		return nil
	},
}

var plannersSelectCmd = &cobra.Command{
	Use:   "select <objective>",
	Short: "Rank planners and pick the best one for an objective",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		f := factory.New(factoryConfig())
		defer f.Close()
		f.Discover(ctx, searchPaths)

		objective := strings.Join(args, " ")
		var deep *ranking.DeepContext
		if selectIndexSummary != "" || selectHotspots > 0 {
			deep = &ranking.DeepContext{
				IndexSummary: selectIndexSummary,
				HotspotCount: selectHotspots,
			}
		}

		rec, err := f.SelectBestPlanner(objective, selectCapabilities, deep)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(rec)
		}

		fmt.Printf("Selected: %s (tier=%s, reliability=%.2f)\n", rec.Name, rec.Tier, rec.ReliabilityScore)
		if samples := f.SelectionProfiles(1); len(samples) == 1 {
			fmt.Printf("Score: %.4f over %d candidate(s)\n", samples[0].Score, samples[0].CandidateCount)
			for factor, value := range samples[0].Breakdown {
				fmt.Printf("  %-16s %.4f\n", factor, value)
			}
		}
		return nil
	},
}

var plannersDescribeCmd = &cobra.Command{
	Use:   "describe <name>",
	Short: "Show the full record for one planner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		f := factory.New(factoryConfig())
		defer f.Close()
		f.Discover(ctx, searchPaths)

		rec, err := f.DescribePlanner(args[0])
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

var plannersHealCmd = &cobra.Command{
	Use:   "heal [name]",
	Short: "Attempt to restore quarantined planners",
	Long: `Re-probes quarantined planners under the heal deadline. With a name,
heals only that planner; otherwise every quarantined planner is attempted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		f := factory.New(factoryConfig())
		defer f.Close()
		f.Discover(ctx, searchPaths)

		targets := f.ListQuarantined()
		if len(args) == 1 {
			targets = []string{args[0]}
		}
		if len(targets) == 0 {
			fmt.Println("No quarantined planners.")
			return nil
		}

		healed := 0
		for _, name := range targets {
			n := f.SelfHeal(ctx, name)
			healed += n
			status := "still quarantined"
			if n > 0 {
				status = "restored"
			}
			fmt.Printf("  %s: %s\n", name, status)
		}
		fmt.Printf("Healed %d of %d planner(s)\n", healed, len(targets))
		return nil
	},
}

var plannersHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report registry readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		f := factory.New(factoryConfig())
		f.Discover(ctx, searchPaths)
		report := f.HealthCheck(healthMinRequired)
		// Close before any exit so the store handle and worker pool are
		// released on the not-ready path too.
		f.Close()

		if outputJSON {
			if err := printJSON(report); err != nil {
				return err
			}
		} else {
			state := "READY"
			if !report.Ready {
				state = "NOT READY"
			}
			fmt.Printf("%s: %d active, %d quarantined, %d total (min required %d)\n",
				state, report.Active, report.Quarantined, report.Total, healthMinRequired)
		}
		if !report.Ready {
			logging.CloseAll()
			_ = logger.Sync()
			os.Exit(1)
		}
		return nil
	},
}

var plannersDiagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Dump registry state, config, and telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		f := factory.New(factoryConfig())
		defer f.Close()
		f.Discover(ctx, searchPaths)

		if diagnosticsOut != "" {
			if err := f.ExportDiagnostics(diagnosticsOut); err != nil {
				return err
			}
			logger.Info("diagnostics exported", zap.String("path", diagnosticsOut))
			fmt.Printf("Diagnostics written to %s\n", diagnosticsOut)
			return nil
		}
		if outputJSON {
			data, err := f.DiagnosticsJSON()
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		fmt.Print(f.DiagnosticsReport())
		return nil
	},
}

func init() {
	plannersSelectCmd.Flags().StringSliceVarP(&selectCapabilities, "capability", "c", nil, "Required capability (repeatable)")
	plannersSelectCmd.Flags().StringVar(&selectIndexSummary, "index-summary", "", "Deep index summary for context-aware boosts")
	plannersSelectCmd.Flags().IntVar(&selectHotspots, "hotspots", 0, "Known hotspot count for context-aware boosts")

	plannersListCmd.Flags().BoolVarP(&listQuarantined, "all", "a", false, "Include quarantined planners")
	plannersHealthCmd.Flags().IntVar(&healthMinRequired, "min", 1, "Minimum active planners for readiness")
	plannersDiagnosticsCmd.Flags().StringVarP(&diagnosticsOut, "out", "o", "", "Write diagnostics JSON to a file")

	for _, c := range []*cobra.Command{plannersListCmd, plannersSelectCmd, plannersHealthCmd, plannersDiagnosticsCmd} {
		c.Flags().BoolVar(&outputJSON, "json", false, "Emit JSON output")
	}

	plannersCmd.AddCommand(
		plannersDiscoverCmd,
		plannersListCmd,
		plannersSelectCmd,
		plannersDescribeCmd,
		plannersHealCmd,
		plannersHealthCmd,
		plannersDiagnosticsCmd,
	)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
