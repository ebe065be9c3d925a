package main

import (
	"os"

	"github.com/spf13/cobra"

	"overmind/internal/sandbox"
)

var probeEntry string

// probeCmd is the hidden worker entry point the sandbox spawns when
// subprocess isolation is on. It evaluates one plugin entry file and
// exits 0 on success, 1 on failure with the reason on stderr.
var probeCmd = &cobra.Command{
	Use:    sandbox.ProbeCommand,
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(sandbox.RunProbeWorker(probeEntry))
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeEntry, "entry", "", "Plugin entry source file to probe")
	probeCmd.MarkFlagRequired("entry")
}
