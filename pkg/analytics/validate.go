package analytics

import (
	"fmt"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/sim"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/validation"
)

const (
	// A shopper blocked for longer than this is probably wedged against
	// geometry rather than waiting in a crowd.
	stallWarnSeconds = 10.0
	// Cashier utilization above this leaves no slack for arrival bursts.
	busyWarnFraction = 0.9
)

// validateRun adds findings about a finished run to report.
func validateRun(s *sim.Simulation, sum *Summary, report *validation.Report) {
	slots := len(s.Queue().Slots())
	if sum.MaxQueueLength > slots {
		report.AddWarning(validation.Result{
			Level:       validation.LevelRun,
			Message:     fmt.Sprintf("checkout line reached %d shoppers but has %d slots; the rest shared the last slot", sum.MaxQueueLength, slots),
			SpecPath:    "queue.slots.count",
			ActualValue: sum.MaxQueueLength,
			Expected:    fmt.Sprintf("<= %d", slots),
			Suggestions: []string{
				"Add cashiers",
				"Extend the slot line",
			},
		})
	}

	if sum.Spawned > 0 && sum.Exited == 0 && sum.Duration > 0 {
		report.AddWarning(validation.Result{
			Level:       validation.LevelRun,
			Message:     fmt.Sprintf("no shopper left the store in %.0fs", sum.Duration),
			SpecPath:    "steps",
			ActualValue: sum.Ticks,
			Suggestions: []string{
				"Run more steps",
				"Check that the exit sequence is reachable from every cashier",
			},
		})
	}

	if sum.LongestStall > stallWarnSeconds {
		report.AddWarning(validation.Result{
			Level:       validation.LevelRun,
			Message:     fmt.Sprintf("a shopper was blocked for %.1fs", sum.LongestStall),
			SpecPath:    "routing.obstacle_buffer",
			ActualValue: sum.LongestStall,
			Expected:    fmt.Sprintf("<= %.0fs", stallWarnSeconds),
			Suggestions: []string{
				"Widen narrow aisles",
				"Raise obstacle_buffer so routes keep clear of shelf ends",
			},
		})
	}

	if sum.CashierUse > busyWarnFraction {
		report.AddWarning(validation.Result{
			Level:       validation.LevelRun,
			Message:     fmt.Sprintf("cashiers were busy %.0f%% of the time", sum.CashierUse*100),
			SpecPath:    "environment.cashiers",
			ActualValue: sum.CashierUse,
			Expected:    fmt.Sprintf("<= %.0f%%", busyWarnFraction*100),
			Suggestions: []string{"Add cashiers or shorten service_time"},
		})
	}

	if sum.TurnedAway > 0 {
		report.AddInfo(validation.Result{
			Level:       validation.LevelRun,
			Message:     fmt.Sprintf("%d arrivals turned away at capacity", sum.TurnedAway),
			SpecPath:    "agents.max_agents",
			ActualValue: sum.TurnedAway,
		})
	}

	report.AddInfo(validation.Result{
		Level: validation.LevelRun,
		Message: fmt.Sprintf("%d shoppers in, %d out, mean line %.1f, mean stay %.0fs",
			sum.Spawned, sum.Exited, sum.MeanQueueLength, sum.MeanTimeInStore),
		SpecPath: "agents",
	})
}
