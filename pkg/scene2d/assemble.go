package scene2d

import (
	"time"

	"github.com/samber/lo"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/routing"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/spec"
)

// Assemble2D converts a store spec into a floor plan. When grid is non-nil
// its blocked cells are included as an overlay.
func Assemble2D(s *spec.StoreSpec, grid *routing.GridMap) *Scene2D {
	env := s.Environment
	return &Scene2D{
		Metadata: assembleMetadata(s),
		Walls:    assembleLines(env.Walls),
		Doors:    assembleLines(env.Doors),
		Shelves:  assembleLines(env.Shelves),
		Counters: assembleCounters(env.Cashiers),
		Slots:    lo.Map(s.Queue.Slots.Points(), func(p geo.Vec2, _ int) [2]float64 { return xy(p) }),
		POIs:     assemblePOIs(s.Agents.PointsOfInterest),
		Route:    assembleRoute(s.Agents),
		Walkable: assembleWalkable(grid),
	}
}

func xy(p geo.Vec2) [2]float64 {
	return [2]float64{p.X, p.Y}
}

func pointXY(p spec.Point, _ int) [2]float64 {
	return [2]float64{p.X, p.Y}
}

func assembleMetadata(s *spec.StoreSpec) Metadata {
	env := s.Environment
	return Metadata{
		Store:       s.Name,
		Width:       env.Width,
		Height:      env.Height,
		Origin:      pointXY(env.Origin, 0),
		AreaM2:      env.Bounds().Area(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func assembleLines(segs []spec.Segment) []Line2D {
	out := make([]Line2D, 0, len(segs))
	for _, s := range segs {
		out = append(out, Line2D{
			Start: pointXY(s.A, 0),
			End:   pointXY(s.B, 0),
		})
	}
	return out
}

func assembleCounters(cashiers []spec.Cashier) []Counter2D {
	out := make([]Counter2D, 0, len(cashiers))
	for i, c := range cashiers {
		r := c.Rect()
		out = append(out, Counter2D{
			ID:           i,
			Min:          xy(r.Min),
			Max:          xy(r.Max),
			ServicePoint: pointXY(c.ServicePoint, 0),
		})
	}
	return out
}

func assemblePOIs(pois []spec.POI) []POI2D {
	return lo.Map(pois, func(p spec.POI, _ int) POI2D {
		return POI2D{Name: p.Name, Pos: pointXY(p.Pos, 0), Prob: p.Prob}
	})
}

func assembleRoute(a spec.Agents) RouteMarkers {
	return RouteMarkers{
		Spawn:     pointXY(a.SpawnPoint, 0),
		Entrances: lo.Map(a.EntrancePoints, pointXY),
		Exits:     lo.Map(a.ExitSequence, pointXY),
	}
}

func assembleWalkable(g *routing.GridMap) *WalkableGrid2D {
	if g == nil {
		return nil
	}
	out := &WalkableGrid2D{
		Origin:   xy(g.ToWorld(routing.Cell{}).Sub(geo.V(g.CellSize()/2, g.CellSize()/2))),
		CellSize: g.CellSize(),
		Cols:     g.Cols(),
		Rows:     g.Rows(),
		Blocked:  []int{},
	}
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if !g.Walkable(routing.Cell{C: c, R: r}) {
				out.Blocked = append(out.Blocked, r*g.Cols()+c)
			}
		}
	}
	out.Regions = lo.Max(g.Components()) + 1
	return out
}
