package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	prettyjson "github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"

	"dockpulse/internal/agent"
	"dockpulse/internal/agent/version"
	"dockpulse/internal/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the telemetry daemon",
		Long:  `Run the sampler, HTTP API and push endpoints until SIGINT or SIGTERM.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				logErrorCmd(cmd, fmt.Errorf("load config: %w", err))
				return err
			}

			logger := agent.BuildLogger(cfg)
			a, err := agent.New(cfg, logger)
			if err != nil {
				logger.Error("agent initialization failed", "error", err)
				return err
			}
			if err := a.Run(cmd.Context()); err != nil {
				logger.Error("agent runtime failed", "error", err)
				return err
			}
			return nil
		},
	}
}

func newSampleCmd() *cobra.Command {
	var (
		wait    time.Duration
		noColor bool
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Take one snapshot and print it",
		Long: `Run sampling cycles once and print the resulting snapshot as JSON.
Two cycles separated by --wait are taken so workload CPU percentages are meaningful; --wait 0 takes a single cycle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				logErrorCmd(cmd, fmt.Errorf("load config: %w", err))
				return err
			}

			logger := agent.NewLogger(cfg, cmd.ErrOrStderr())
			a, err := agent.New(cfg, logger)
			if err != nil {
				logErrorCmd(cmd, err)
				return err
			}
			defer a.Close()

			snap, err := a.Sample(cmd.Context(), wait)
			if err != nil {
				logErrorCmd(cmd, err)
				return err
			}
			return logJSONCmd(cmd.OutOrStdout(), snap, noColor)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", time.Second, "pause between the two sampling cycles")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func newVersionCmd() *cobra.Command {
	var noColor bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				logErrorCmd(cmd, fmt.Errorf("load config: %w", err))
				return err
			}
			return logJSONCmd(cmd.OutOrStdout(), version.Get(cfg), noColor)
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func logJSONCmd(w io.Writer, v any, noColor bool) error {
	f := prettyjson.NewFormatter()
	f.DisabledColor = noColor || color.NoColor
	data, err := f.Marshal(v)
	if err != nil {
		return fmt.Errorf("format json: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func logErrorCmd(cmd *cobra.Command, err error) {
	boldRed := color.New(color.FgRed, color.Bold)
	boldRed.Fprintf(cmd.ErrOrStderr(), "\nerror: ")
	fmt.Fprintf(cmd.ErrOrStderr(), "%s\n\n", color.RedString(err.Error()))
}
