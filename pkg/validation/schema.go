package validation

import (
	"fmt"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/spec"
)

// Ranges below this multiple of the force falloff length miss interactions
// that are still noticeable.
const minRangeFalloffs = 3.0

// ValidateSchema checks a parsed StoreSpec for values that would make a run
// meaningless or unstable. It does not rasterize the layout; see
// routing.CheckLayout for that.
func ValidateSchema(s *spec.StoreSpec) *Report {
	r := NewReport()

	validateRun(s, r)
	validateEnvironment(s, r)
	validatePhysics(s, r)
	validateRouting(s, r)
	validateQueue(s, r)
	validateAgents(s, r)

	return r
}

func validateRun(s *spec.StoreSpec, r *Report) {
	if s.DT <= 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "dt must be greater than 0",
			SpecPath:    "dt",
			ActualValue: s.DT,
			Expected:    "> 0",
		})
	} else if s.DT > 0.1 {
		r.AddWarning(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("dt %.3f is large for contact forces; agents may tunnel through walls", s.DT),
			SpecPath:    "dt",
			ActualValue: s.DT,
			Expected:    "<= 0.1",
		})
	}
	if s.Steps < 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "steps must be non-negative",
			SpecPath:    "steps",
			ActualValue: s.Steps,
			Expected:    ">= 0",
		})
	}
}

func validateEnvironment(s *spec.StoreSpec, r *Report) {
	env := s.Environment
	if env.Width <= 0 || env.Height <= 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("store size %.2fx%.2f must be positive", env.Width, env.Height),
			SpecPath:    "environment.width",
			ActualValue: fmt.Sprintf("%.2fx%.2f", env.Width, env.Height),
			Expected:    "> 0",
		})
		return
	}

	if len(env.Cashiers) == 0 {
		r.AddWarning(Result{
			Level:       LevelGeometry,
			Message:     "no cashiers: shoppers will queue forever",
			SpecPath:    "environment.cashiers",
			Suggestions: []string{"Add at least one cashier with a service_point"},
		})
	}

	bounds := env.Bounds()
	for i, c := range env.Cashiers {
		path := fmt.Sprintf("environment.cashiers[%d]", i)
		if c.Size.X <= 0 || c.Size.Y <= 0 {
			r.AddError(Result{
				Level:       LevelSchema,
				Message:     "cashier size must be positive",
				SpecPath:    path + ".size",
				ActualValue: fmt.Sprintf("%.2fx%.2f", c.Size.X, c.Size.Y),
				Expected:    "> 0",
			})
		}
		if c.Rect().Contains(c.ServicePoint.Vec()) {
			r.AddError(Result{
				Level:        LevelGeometry,
				Message:      "service point lies inside the cashier counter",
				SpecPath:     path + ".service_point",
				ActualValue:  c.ServicePoint,
				ConflictWith: path + ".pos",
			})
		}
		if !bounds.Contains(c.ServicePoint.Vec()) {
			r.AddWarning(Result{
				Level:       LevelGeometry,
				Message:     "service point is outside the store bounds",
				SpecPath:    path + ".service_point",
				ActualValue: c.ServicePoint,
			})
		}
	}

	for i, seg := range env.Walls {
		if seg.Geo().IsDegenerate() {
			r.AddInfo(Result{
				Level:    LevelGeometry,
				Message:  "zero-length wall is ignored",
				SpecPath: fmt.Sprintf("environment.walls[%d]", i),
			})
		}
	}
	for i, seg := range env.Shelves {
		if seg.Geo().IsDegenerate() {
			r.AddInfo(Result{
				Level:    LevelGeometry,
				Message:  "zero-length shelf edge is ignored",
				SpecPath: fmt.Sprintf("environment.shelves[%d]", i),
			})
		}
	}
}

func validatePhysics(s *spec.StoreSpec, r *Report) {
	p := s.Physics
	positive := []struct {
		name  string
		value float64
	}{
		{"B", p.B},
		{"B_w", p.BW},
		{"tau", p.Tau},
		{"desired_speed", p.DesiredSpeed},
		{"radius", p.Radius},
	}
	for _, f := range positive {
		if f.value <= 0 {
			r.AddError(Result{
				Level:       LevelSchema,
				Message:     fmt.Sprintf("physics.%s must be greater than 0", f.name),
				SpecPath:    "physics." + f.name,
				ActualValue: f.value,
				Expected:    "> 0",
			})
		}
	}

	nonNegative := []struct {
		name  string
		value float64
	}{
		{"A", p.A},
		{"A_w", p.AW},
		{"kappa", p.Kappa},
		{"body_stiffness", p.BodyStiffness},
		{"damping", p.Damping},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			r.AddError(Result{
				Level:       LevelSchema,
				Message:     fmt.Sprintf("physics.%s must be non-negative", f.name),
				SpecPath:    "physics." + f.name,
				ActualValue: f.value,
				Expected:    ">= 0",
			})
		}
	}

	if p.B > 0 && p.NeighborRange < minRangeFalloffs*p.B {
		r.AddWarning(Result{
			Level:       LevelGeometry,
			Message:     fmt.Sprintf("neighbor_range %.2f is short for repulsion range B=%.2f", p.NeighborRange, p.B),
			SpecPath:    "physics.neighbor_range",
			ActualValue: p.NeighborRange,
			Expected:    fmt.Sprintf(">= %.2f", minRangeFalloffs*p.B),
			Suggestions: []string{"Raise neighbor_range so agent grid cells cover the force falloff"},
		})
	}
	if p.BW > 0 && p.WallRange < minRangeFalloffs*p.BW+p.Radius {
		r.AddWarning(Result{
			Level:       LevelGeometry,
			Message:     fmt.Sprintf("wall_range %.2f is short for wall range B_w=%.2f", p.WallRange, p.BW),
			SpecPath:    "physics.wall_range",
			ActualValue: p.WallRange,
			Expected:    fmt.Sprintf(">= %.2f", minRangeFalloffs*p.BW+p.Radius),
		})
	}
}

func validateRouting(s *spec.StoreSpec, r *Report) {
	rt := s.Routing
	if rt.GridSize <= 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "routing.grid_size must be greater than 0",
			SpecPath:    "routing.grid_size",
			ActualValue: rt.GridSize,
			Expected:    "> 0",
		})
	}
	if rt.ObstacleBuffer < s.Physics.Radius {
		r.AddWarning(Result{
			Level:        LevelGeometry,
			Message:      fmt.Sprintf("obstacle_buffer %.2f is smaller than the agent radius %.2f; paths may graze walls", rt.ObstacleBuffer, s.Physics.Radius),
			SpecPath:     "routing.obstacle_buffer",
			ActualValue:  rt.ObstacleBuffer,
			Expected:     fmt.Sprintf(">= %.2f", s.Physics.Radius),
			ConflictWith: "physics.radius",
		})
	}
	if rt.MaxIterations < 0 || rt.SearchRadius < 0 {
		r.AddError(Result{
			Level:    LevelSchema,
			Message:  "routing.max_iterations and routing.search_radius must be non-negative",
			SpecPath: "routing",
			Expected: ">= 0",
		})
	}
	if rt.WaypointThreshold <= 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "routing.waypoint_threshold must be greater than 0",
			SpecPath:    "routing.waypoint_threshold",
			ActualValue: rt.WaypointThreshold,
			Expected:    "> 0",
		})
	}
}

func validateQueue(s *spec.StoreSpec, r *Report) {
	q := s.Queue
	if q.Slots.Count < 1 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "queue.slots.count must be at least 1",
			SpecPath:    "queue.slots.count",
			ActualValue: q.Slots.Count,
			Expected:    ">= 1",
		})
	}
	validateRange(r, "queue.service_time", q.ServiceTime)
}

func validateAgents(s *spec.StoreSpec, r *Report) {
	a := s.Agents
	if a.SpawnRate < 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "agents.spawn_rate must be non-negative",
			SpecPath:    "agents.spawn_rate",
			ActualValue: a.SpawnRate,
			Expected:    ">= 0",
		})
	}
	if a.NAgents < 0 || a.MaxAgents < 0 || a.MinStops < 0 || a.MaxSpawnTime < 0 {
		r.AddError(Result{
			Level:    LevelSchema,
			Message:  "agents.n_agents, max_agents, min_stops and max_spawn_time must be non-negative",
			SpecPath: "agents",
			Expected: ">= 0",
		})
	}
	if a.SpawnRate == 0 && a.NAgents == 0 {
		r.AddWarning(Result{
			Level:       LevelSchema,
			Message:     "no agents will enter the store",
			SpecPath:    "agents",
			Suggestions: []string{"Set spawn_rate or n_agents"},
		})
	}
	if len(a.ExitSequence) == 0 {
		r.AddWarning(Result{
			Level:    LevelSchema,
			Message:  "empty exit_sequence: shoppers vanish at the cashier",
			SpecPath: "agents.exit_sequence",
		})
	}
	if a.RateNoise.Amplitude < 0 || a.RateNoise.Amplitude > 1 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "agents.rate_noise.amplitude must be within [0, 1]",
			SpecPath:    "agents.rate_noise.amplitude",
			ActualValue: a.RateNoise.Amplitude,
			Expected:    "0-1",
		})
	}
	validateRange(r, "agents.dwell", a.Dwell)

	if len(a.PointsOfInterest) < a.MinStops {
		r.AddWarning(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("min_stops %d exceeds the %d points of interest", a.MinStops, len(a.PointsOfInterest)),
			SpecPath:    "agents.min_stops",
			ActualValue: a.MinStops,
		})
	}
	for i, poi := range a.PointsOfInterest {
		path := fmt.Sprintf("agents.points_of_interest[%d]", i)
		if poi.Prob < 0 || poi.Prob > 1 {
			r.AddError(Result{
				Level:       LevelSchema,
				Message:     fmt.Sprintf("%s: prob %.2f must be within [0, 1]", poi.Name, poi.Prob),
				SpecPath:    path + ".prob",
				ActualValue: poi.Prob,
				Expected:    "0-1",
			})
		}
		if !poi.Dwell.IsZero() {
			validateRange(r, path+".dwell", poi.Dwell)
		}
	}
}

func validateRange(r *Report, path string, rg spec.Range) {
	if rg.Min < 0 || rg.Max < rg.Min {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("range [%.2f, %.2f] must satisfy 0 <= min <= max", rg.Min, rg.Max),
			SpecPath:    path,
			ActualValue: fmt.Sprintf("%.2f-%.2f", rg.Min, rg.Max),
			Expected:    "0 <= min <= max",
		})
	}
}
