package main

import (
	"fmt"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/analytics"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/validation"
)

func printValidationReport(r *validation.Report) {
	if len(r.Errors) > 0 {
		fmt.Printf("ERRORS (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Printf("  [%s] %s\n", e.Level, e.Message)
			if e.SpecPath != "" {
				fmt.Printf("    -> %s = %v\n", e.SpecPath, e.ActualValue)
			}
			if e.Expected != "" {
				fmt.Printf("    expected: %s\n", e.Expected)
			}
			if e.ConflictWith != "" {
				fmt.Printf("    conflicts with: %s\n", e.ConflictWith)
			}
			for _, s := range e.Suggestions {
				fmt.Printf("    * %s\n", s)
			}
		}
		fmt.Println()
	}

	if len(r.Warnings) > 0 {
		fmt.Printf("WARNINGS (%d):\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Printf("  [%s] %s\n", w.Level, w.Message)
			if w.SpecPath != "" {
				fmt.Printf("    -> %s = %v\n", w.SpecPath, w.ActualValue)
			}
			if w.Expected != "" {
				fmt.Printf("    expected: %s\n", w.Expected)
			}
			for _, s := range w.Suggestions {
				fmt.Printf("    * %s\n", s)
			}
		}
		fmt.Println()
	}

	if len(r.Info) > 0 {
		fmt.Printf("INFO (%d):\n", len(r.Info))
		for _, i := range r.Info {
			fmt.Printf("  [%s] %s\n", i.Level, i.Message)
		}
		fmt.Println()
	}

	if r.Valid {
		fmt.Printf("Result: VALID (%s)\n", r.Summary)
	} else {
		fmt.Printf("Result: INVALID (%s)\n", r.Summary)
	}
}

func printSummary(s *analytics.Summary) {
	fmt.Printf("Run %s (%s)\n", s.RunID, s.Store)
	fmt.Println("==========================================")
	fmt.Println()

	rows := []struct {
		label string
		value string
	}{
		{"Simulated time", formatDuration(s.Duration)},
		{"Ticks", fmt.Sprintf("%d", s.Ticks)},
		{"Shoppers in", fmt.Sprintf("%d", s.Spawned)},
		{"Shoppers out", fmt.Sprintf("%d", s.Exited)},
		{"Still in store", fmt.Sprintf("%d", s.StillIn)},
		{"Turned away", fmt.Sprintf("%d", s.TurnedAway)},
		{"Mean line length", fmt.Sprintf("%.2f", s.MeanQueueLength)},
		{"Max line length", fmt.Sprintf("%d", s.MaxQueueLength)},
		{"Cashier use", fmt.Sprintf("%.0f%%", s.CashierUse*100)},
		{"Mean time in store", formatDuration(s.MeanTimeInStore)},
		{"Max time in store", formatDuration(s.MaxTimeInStore)},
		{"Mean walking speed", fmt.Sprintf("%.2f m/s", s.MeanSpeed)},
		{"Longest stall", formatDuration(s.LongestStall)},
		{"Replans", fmt.Sprintf("%d", s.Replans)},
		{"Peak occupancy", fmt.Sprintf("%d", s.PeakOccupancy)},
		{"Peak density", fmt.Sprintf("%.3f /m2", s.PeakDensity)},
		{"Throughput", fmt.Sprintf("%.1f /min", s.Throughput)},
	}

	for _, row := range rows {
		fmt.Printf("  %-20s %14s\n", row.label, row.value)
	}
}

func formatDuration(sec float64) string {
	if sec >= 3600 {
		return fmt.Sprintf("%.1fh", sec/3600)
	}
	if sec >= 60 {
		return fmt.Sprintf("%dm%02ds", int(sec)/60, int(sec)%60)
	}
	return fmt.Sprintf("%.1fs", sec)
}
