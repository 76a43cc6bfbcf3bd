package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/analytics"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/routing"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/sim"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/spec"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/validation"
)

type runOptions struct {
	steps       int
	json        bool
	sampleEvery int
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// loadAndValidate loads the store spec and runs schema and layout validation.
// Layout checks are skipped when the schema is already invalid.
func loadAndValidate(projectPath string) (*spec.StoreSpec, *validation.Report, error) {
	storeSpec, err := spec.LoadProject(projectPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading spec: %w", err)
	}
	report := validation.ValidateSchema(storeSpec)
	if report.Valid {
		grid := routing.NewStorePlanner(storeSpec, slog.Default()).Grid()
		report.Merge(routing.CheckLayout(grid, storeSpec))
	}
	return storeSpec, report, nil
}

func runValidate(projectPath string) error {
	_, report, err := loadAndValidate(projectPath)
	if err != nil {
		return err
	}

	printValidationReport(report)

	if !report.Valid {
		os.Exit(1)
	}
	return nil
}

func runSim(projectPath string, opts runOptions) error {
	storeSpec, report, err := loadAndValidate(projectPath)
	if err != nil {
		return err
	}
	if !report.Valid {
		printValidationReport(report)
		return fmt.Errorf("spec has validation errors")
	}

	sm, err := sim.New(storeSpec, slog.Default())
	if err != nil {
		return err
	}
	collector := analytics.For(sm, opts.sampleEvery)

	ctx, stop := signalContext()
	defer stop()
	if err := sm.Run(ctx, opts.steps); err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
		slog.Warn("run interrupted", "ticks", sm.TickCount())
	}

	summary, runReport := analytics.Summarize(collector, sm)
	report.Merge(runReport)

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"summary":    summary,
			"validation": report,
		})
	}

	printSummary(summary)
	fmt.Println()
	printValidationReport(runReport)
	return nil
}
