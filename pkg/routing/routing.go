// Package routing plans obstacle-free walking routes on a rasterized store
// map: grid A*, line-of-sight simplification, and joining of strategic
// stops into a single agent path.
package routing

import (
	"log/slog"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/agent"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/spec"
)

// Stop is a strategic destination: a shelf to visit, an entrance, a door.
type Stop struct {
	Name string   `json:"name,omitempty"`
	Pos  geo.Vec2 `json:"pos"`
	Wait float64  `json:"wait,omitempty"`
}

// Planner turns pairs of world points into sparse walkable waypoints.
type Planner struct {
	grid   *GridMap
	opts   SearchOptions
	logger *slog.Logger
}

// NewPlanner creates a planner over grid. A nil logger uses slog.Default().
func NewPlanner(grid *GridMap, opts SearchOptions, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{grid: grid, opts: opts.withDefaults(), logger: logger}
}

// NewStorePlanner rasterizes the store's obstacles with the store's routing
// settings and returns a planner over the result.
func NewStorePlanner(s *spec.StoreSpec, logger *slog.Logger) *Planner {
	grid := NewGridMap(s.Environment.Bounds(), s.Routing.GridSize, s.Routing.ObstacleBuffer, s.Environment.Obstacles())
	opts := SearchOptions{
		MaxIterations: s.Routing.MaxIterations,
		SearchRadius:  s.Routing.SearchRadius,
	}
	return NewPlanner(grid, opts, logger)
}

// Grid returns the walkability grid the planner searches.
func (p *Planner) Grid() *GridMap {
	return p.grid
}

// Plan returns the turning points of a shortest route from one point to
// another, excluding the starting point. When the target lies in a free cell
// the final waypoint is the exact target; otherwise it is the nearest free
// cell center.
func (p *Planner) Plan(from, to geo.Vec2) ([]geo.Vec2, error) {
	cells, err := p.grid.Search(from, to, p.opts)
	if err != nil {
		return nil, err
	}
	cells = p.grid.Simplify(cells)

	pts := make([]geo.Vec2, 0, len(cells))
	for _, c := range cells[1:] {
		pts = append(pts, p.grid.ToWorld(c))
	}

	switch {
	case p.grid.WalkableAt(to) && len(pts) == 0:
		pts = append(pts, to)
	case p.grid.WalkableAt(to):
		pts[len(pts)-1] = to
	case len(pts) == 0:
		pts = append(pts, p.grid.ToWorld(cells[0]))
	}
	return pts, nil
}

// BuildRoute joins consecutive stops with planned legs. The first stop is the
// starting node; every later stop contributes its leg's waypoints, with the
// stop's dwell time on the leg's last waypoint. A stop that cannot be reached
// is skipped and the next leg starts from the last reached point.
func (p *Planner) BuildRoute(stops []Stop) []agent.PathNode {
	if len(stops) == 0 {
		return nil
	}

	nodes := []agent.PathNode{{Pos: stops[0].Pos, Wait: stops[0].Wait}}
	cur := stops[0].Pos
	for _, s := range stops[1:] {
		pts, err := p.Plan(cur, s.Pos)
		if err != nil {
			p.logger.Debug("skipping unreachable stop",
				"stop", s.Name, "x", s.Pos.X, "y", s.Pos.Y, "err", err)
			continue
		}
		for i, pt := range pts {
			node := agent.PathNode{Pos: pt}
			if i == len(pts)-1 {
				node.Wait = s.Wait
			}
			nodes = append(nodes, node)
		}
		cur = pts[len(pts)-1]
	}
	return nodes
}
