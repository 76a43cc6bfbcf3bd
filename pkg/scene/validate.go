package scene

import (
	"fmt"
	"math"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/queue"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/validation"
)

// boundsTolerance lets agents standing in a doorway or at the outside spawn
// point stray past the store outline.
const boundsTolerance = 1.0

// ValidateFrame performs structural validation on a captured frame.
// It checks agent integrity, group index consistency, bounds enclosure and
// the checkout references.
func ValidateFrame(f *Frame) *validation.Report {
	r := validation.NewReport()

	if f == nil {
		r.AddError(validation.Result{
			Level:   validation.LevelRun,
			Message: "frame is nil",
		})
		return r
	}

	validateAgentIDs(f, r)
	validateGroupIndices(f, r)
	validateGroupMembership(f, r)
	validatePositions(f, r)
	validateCheckout(f, r)

	return r
}

func validateAgentIDs(f *Frame, r *validation.Report) {
	seen := make(map[int]int, len(f.Agents))

	for i, a := range f.Agents {
		if a.ID < 0 {
			r.AddError(validation.Result{
				Level:       validation.LevelRun,
				Message:     fmt.Sprintf("agent at index %d has negative ID", i),
				SpecPath:    fmt.Sprintf("agents[%d].id", i),
				ActualValue: a.ID,
				Expected:    ">= 0",
			})
			continue
		}
		if prev, exists := seen[a.ID]; exists {
			r.AddError(validation.Result{
				Level:       validation.LevelRun,
				Message:     fmt.Sprintf("duplicate agent ID %d at indices %d and %d", a.ID, prev, i),
				SpecPath:    fmt.Sprintf("agents[%d].id", i),
				ActualValue: a.ID,
			})
		}
		seen[a.ID] = i
	}
}

func agentIDs(f *Frame) map[int]AgentState {
	out := make(map[int]AgentState, len(f.Agents))
	for _, a := range f.Agents {
		out[a.ID] = a
	}
	return out
}

func validateGroupIndices(f *Frame, r *validation.Report) {
	ids := agentIDs(f)

	checkGroup := func(path string, members []int) {
		for _, id := range members {
			if _, ok := ids[id]; !ok {
				r.AddError(validation.Result{
					Level:       validation.LevelRun,
					Message:     fmt.Sprintf("group %s references missing agent %d", path, id),
					SpecPath:    path,
					ActualValue: id,
					Expected:    "existing agent ID",
				})
			}
		}
	}

	for name, members := range f.Groups.Phases {
		checkGroup("groups.phases."+name, members)
	}
	checkGroup("groups.waiting", f.Groups.Waiting)
}

func memberSet(ids []int) map[int]bool {
	m := make(map[int]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func validateGroupMembership(f *Frame, r *validation.Report) {
	phases := make(map[string]map[int]bool, len(f.Groups.Phases))
	for name, ids := range f.Groups.Phases {
		phases[name] = memberSet(ids)
	}
	waiting := memberSet(f.Groups.Waiting)

	for _, a := range f.Agents {
		name := a.Phase.String()
		if !phases[name][a.ID] {
			r.AddError(validation.Result{
				Level:       validation.LevelRun,
				Message:     fmt.Sprintf("agent %d has phase %q but is not in its phase group", a.ID, name),
				SpecPath:    "groups.phases." + name,
				ActualValue: a.ID,
			})
		}
		if a.Waiting != waiting[a.ID] {
			r.AddError(validation.Result{
				Level:       validation.LevelRun,
				Message:     fmt.Sprintf("agent %d waiting=%v disagrees with the waiting group", a.ID, a.Waiting),
				SpecPath:    "groups.waiting",
				ActualValue: a.ID,
			})
		}
	}
}

func validatePositions(f *Frame, r *validation.Report) {
	b := f.Metadata.Bounds.Expand(boundsTolerance)

	for _, a := range f.Agents {
		if math.IsNaN(a.Position.X) || math.IsNaN(a.Position.Y) ||
			math.IsInf(a.Position.X, 0) || math.IsInf(a.Position.Y, 0) {
			r.AddError(validation.Result{
				Level:       validation.LevelRun,
				Message:     fmt.Sprintf("agent %d has a non-finite position", a.ID),
				SpecPath:    fmt.Sprintf("agents.%d.position", a.ID),
				ActualValue: fmt.Sprintf("(%v, %v)", a.Position.X, a.Position.Y),
			})
			continue
		}
		if !b.Contains(a.Position) {
			r.AddWarning(validation.Result{
				Level:       validation.LevelRun,
				Message:     fmt.Sprintf("agent %d at (%.2f, %.2f) is outside the store bounds", a.ID, a.Position.X, a.Position.Y),
				SpecPath:    "metadata.bounds",
				ActualValue: a.Position,
			})
			break
		}
	}
}

func validateCheckout(f *Frame, r *validation.Report) {
	ids := agentIDs(f)

	for _, c := range f.Cashiers {
		if c.Serving != queue.NoAgent && c.Expecting != queue.NoAgent {
			r.AddError(validation.Result{
				Level:        validation.LevelRun,
				Message:      fmt.Sprintf("cashier %d is serving agent %d and expecting agent %d", c.ID, c.Serving, c.Expecting),
				SpecPath:     fmt.Sprintf("cashiers[%d]", c.ID),
				ConflictWith: "one holder per cashier",
			})
		}
		for _, id := range []int{c.Serving, c.Expecting} {
			if id == queue.NoAgent {
				continue
			}
			if _, ok := ids[id]; !ok {
				r.AddError(validation.Result{
					Level:       validation.LevelRun,
					Message:     fmt.Sprintf("cashier %d is held by missing agent %d", c.ID, id),
					SpecPath:    fmt.Sprintf("cashiers[%d]", c.ID),
					ActualValue: id,
				})
			}
		}
	}

	for i, id := range f.Queue {
		a, ok := ids[id]
		if !ok {
			r.AddError(validation.Result{
				Level:       validation.LevelRun,
				Message:     fmt.Sprintf("queue position %d holds missing agent %d", i, id),
				SpecPath:    fmt.Sprintf("queue[%d]", i),
				ActualValue: id,
			})
			continue
		}
		if !a.Phase.Queued() {
			r.AddError(validation.Result{
				Level:       validation.LevelRun,
				Message:     fmt.Sprintf("agent %d is in the line but in phase %q", id, a.Phase),
				SpecPath:    fmt.Sprintf("queue[%d]", i),
				ActualValue: a.Phase.String(),
				Expected:    "to_queue_slot or in_queue",
			})
		}
	}
}
