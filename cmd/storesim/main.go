package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mrozu888/crowd-pressure-simulation/internal/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "storesim",
		Short: "Pedestrian and checkout queue simulation for retail store layouts",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging(verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [project-path]",
		Short: "Run a simulation headless and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSim(args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.steps, "steps", "n", 0, "ticks to run (default: steps from store.yaml)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the summary and run report as JSON")
	cmd.Flags().IntVar(&opts.sampleEvery, "timeline", 0, "record a timeline sample every N ticks")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [project-path]",
		Short: "Validate a store spec and its layout without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runValidate(args[0])
		},
	}
}

func serveCmd() *cobra.Command {
	var (
		port  int
		speed float64
	)

	cmd := &cobra.Command{
		Use:   "serve [project-path]",
		Short: "Run a simulation live and stream frames to viewers",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			srv := server.New(args[0], port, speed, slog.Default())
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 3000, "HTTP server port")
	cmd.Flags().Float64Var(&speed, "speed", 1, "simulated seconds per wall-clock second")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the storesim version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("storesim", version)
		},
	}
}
