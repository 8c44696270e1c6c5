package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "dockpulse",
		Short:        "Host and workload telemetry daemon",
		Long:         `dockpulse samples host and container telemetry on a fixed cadence and serves the latest snapshot over HTTP, websocket and SSE.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newServeCmd(), newSampleCmd(), newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
