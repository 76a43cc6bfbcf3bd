package routing

import (
	"fmt"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/spec"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/validation"
)

// Components labels the walkable cells with the index of the region they
// belong to, using the same moves Search may take. Blocked cells get -1.
// Labels are assigned in row-major scan order.
func (g *GridMap) Components() []int {
	labels := make([]int, len(g.blocked))
	for i := range labels {
		labels[i] = -1
	}

	next := 0
	var stack []Cell
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			start := Cell{c, r}
			if !g.Walkable(start) || labels[r*g.cols+c] >= 0 {
				continue
			}
			labels[r*g.cols+c] = next
			stack = append(stack[:0], start)
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for _, off := range neighborOffsets {
					nb := Cell{cur.C + off.C, cur.R + off.R}
					if !g.Walkable(nb) || labels[nb.R*g.cols+nb.C] >= 0 {
						continue
					}
					if off.C != 0 && off.R != 0 &&
						(!g.Walkable(Cell{cur.C + off.C, cur.R}) || !g.Walkable(Cell{cur.C, cur.R + off.R})) {
						continue
					}
					labels[nb.R*g.cols+nb.C] = next
					stack = append(stack, nb)
				}
			}
			next++
		}
	}
	return labels
}

type keyPoint struct {
	path     string
	pos      geo.Vec2
	required bool
}

func keyPoints(s *spec.StoreSpec) []keyPoint {
	var pts []keyPoint
	for i, p := range s.Agents.EntrancePoints {
		pts = append(pts, keyPoint{fmt.Sprintf("agents.entrance_points[%d]", i), p.Vec(), true})
	}
	for i, c := range s.Environment.Cashiers {
		pts = append(pts, keyPoint{fmt.Sprintf("environment.cashiers[%d].service_point", i), c.ServicePoint.Vec(), true})
	}
	for i, p := range s.Queue.Slots.Points() {
		pts = append(pts, keyPoint{fmt.Sprintf("queue.slots[%d]", i), p, true})
	}
	for i, p := range s.Agents.ExitSequence {
		pts = append(pts, keyPoint{fmt.Sprintf("agents.exit_sequence[%d]", i), p.Vec(), true})
	}
	for i, poi := range s.Agents.PointsOfInterest {
		pts = append(pts, keyPoint{fmt.Sprintf("agents.points_of_interest[%d]", i), poi.Pos.Vec(), false})
	}
	return pts
}

// CheckLayout reports how the route planner will see the store's named
// points. A point on a blocked cell is a warning, since searches relocate
// it. A required point (entrance, service point, queue slot, exit) that
// cannot be relocated or is cut off from the spawn point is an error. The
// same problem on a point of interest is a warning, since routes skip
// unreachable stops.
func CheckLayout(g *GridMap, s *spec.StoreSpec) *validation.Report {
	r := validation.NewReport()
	radius := s.Routing.SearchRadius
	if radius <= 0 {
		radius = DefaultSearchRadius
	}
	labels := g.Components()

	spawnCell, ok := g.nearestWalkable(g.ToCell(s.Agents.SpawnPoint.Vec()), radius)
	if !ok {
		r.AddError(validation.Result{
			Level:       validation.LevelRouting,
			Message:     "spawn point has no walkable cell nearby",
			SpecPath:    "agents.spawn_point",
			ActualValue: s.Agents.SpawnPoint,
		})
		return r
	}
	home := labels[spawnCell.R*g.cols+spawnCell.C]

	for _, kp := range keyPoints(s) {
		problem := r.AddWarning
		if kp.required {
			problem = r.AddError
		}

		if !g.WalkableAt(kp.pos) {
			r.AddWarning(validation.Result{
				Level:       validation.LevelRouting,
				Message:     "point lies on a blocked cell and will be moved to the nearest free cell",
				SpecPath:    kp.path,
				ActualValue: kp.pos,
				Suggestions: []string{"Move the point away from walls by at least routing.obstacle_buffer"},
			})
		}

		cell, ok := g.nearestWalkable(g.ToCell(kp.pos), radius)
		if !ok {
			problem(validation.Result{
				Level:       validation.LevelRouting,
				Message:     fmt.Sprintf("no walkable cell within %d cells", radius),
				SpecPath:    kp.path,
				ActualValue: kp.pos,
			})
			continue
		}
		if labels[cell.R*g.cols+cell.C] != home {
			problem(validation.Result{
				Level:        validation.LevelRouting,
				Message:      "point is not reachable from the spawn point",
				SpecPath:     kp.path,
				ActualValue:  kp.pos,
				ConflictWith: "agents.spawn_point",
			})
		}
	}

	r.AddInfo(validation.Result{
		Level:       validation.LevelRouting,
		Message:     fmt.Sprintf("grid %dx%d, %d blocked cells", g.cols, g.rows, g.BlockedCount()),
		SpecPath:    "routing.grid_size",
		ActualValue: g.cellSize,
	})
	return r
}
