package spec

import (
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
)

// StoreSpec is the top-level description of one simulated store and run.
type StoreSpec struct {
	Name        string      `yaml:"name" json:"name"`
	DT          float64     `yaml:"dt" json:"dt"`
	Steps       int         `yaml:"steps" json:"steps"`
	Seed        int64       `yaml:"seed" json:"seed"`
	Environment Environment `yaml:"environment" json:"environment"`
	Physics     Physics     `yaml:"physics" json:"physics"`
	Routing     Routing     `yaml:"routing" json:"routing"`
	Queue       Queue       `yaml:"queue" json:"queue"`
	Agents      Agents      `yaml:"agents" json:"agents"`
}

// Environment is the static store geometry.
type Environment struct {
	Width    float64   `yaml:"width" json:"width"`
	Height   float64   `yaml:"height" json:"height"`
	Origin   Point     `yaml:"origin" json:"origin"`
	Walls    []Segment `yaml:"walls" json:"walls"`
	Doors    []Segment `yaml:"doors" json:"doors"`
	Shelves  []Segment `yaml:"shelves" json:"shelves"`
	Cashiers []Cashier `yaml:"cashiers" json:"cashiers"`
}

// Bounds returns the planning area of the store.
func (e Environment) Bounds() geo.Rect {
	return geo.RectFromPosSize(e.Origin.Vec(), geo.V(e.Width, e.Height))
}

// WallSegments returns walls followed by shelves: the segments agents feel
// through the wall force.
func (e Environment) WallSegments() []geo.Segment {
	out := make([]geo.Segment, 0, len(e.Walls)+len(e.Shelves))
	for _, s := range e.Walls {
		out = append(out, s.Geo())
	}
	for _, s := range e.Shelves {
		out = append(out, s.Geo())
	}
	return out
}

// Obstacles returns every segment the route planner must avoid: walls,
// shelves and the four edges of each cashier counter.
func (e Environment) Obstacles() []geo.Segment {
	out := e.WallSegments()
	for _, c := range e.Cashiers {
		out = append(out, c.Rect().Edges()...)
	}
	return out
}

// CashierRects returns the counter hit boxes in declaration order.
func (e Environment) CashierRects() []geo.Rect {
	out := make([]geo.Rect, len(e.Cashiers))
	for i, c := range e.Cashiers {
		out[i] = c.Rect()
	}
	return out
}

// Cashier is a checkout counter and the point where a customer stands to pay.
type Cashier struct {
	Pos          Point `yaml:"pos" json:"pos"`
	Size         Point `yaml:"size" json:"size"`
	ServicePoint Point `yaml:"service_point" json:"service_point"`
}

// Rect returns the counter's hit box.
func (c Cashier) Rect() geo.Rect {
	return geo.RectFromPosSize(c.Pos.Vec(), c.Size.Vec())
}

// Physics holds the social force constants and body parameters.
type Physics struct {
	A             float64 `yaml:"A" json:"A"`
	B             float64 `yaml:"B" json:"B"`
	AW            float64 `yaml:"A_w" json:"A_w"`
	BW            float64 `yaml:"B_w" json:"B_w"`
	DesiredSpeed  float64 `yaml:"desired_speed" json:"desired_speed"`
	Tau           float64 `yaml:"tau" json:"tau"`
	Kappa         float64 `yaml:"kappa" json:"kappa"`
	BodyStiffness float64 `yaml:"body_stiffness" json:"body_stiffness"`
	Damping       float64 `yaml:"damping" json:"damping"`
	Radius        float64 `yaml:"radius" json:"radius"`
	NeighborRange float64 `yaml:"neighbor_range" json:"neighbor_range"`
	WallRange     float64 `yaml:"wall_range" json:"wall_range"`
}

// Routing controls obstacle rasterization and search.
type Routing struct {
	GridSize          float64 `yaml:"grid_size" json:"grid_size"`
	ObstacleBuffer    float64 `yaml:"obstacle_buffer" json:"obstacle_buffer"`
	MaxIterations     int     `yaml:"max_iterations" json:"max_iterations"`
	SearchRadius      int     `yaml:"search_radius" json:"search_radius"`
	WaypointThreshold float64 `yaml:"waypoint_threshold" json:"waypoint_threshold"`
}

// Queue describes the checkout line and service times.
type Queue struct {
	Slots       SlotLine `yaml:"slots" json:"slots"`
	ServiceTime Range    `yaml:"service_time" json:"service_time"`
}

// SlotLine generates Count queue positions starting at Start, each Step apart.
type SlotLine struct {
	Start Point `yaml:"start" json:"start"`
	Step  Point `yaml:"step" json:"step"`
	Count int   `yaml:"count" json:"count"`
}

// Points returns the slot positions, head of the line first.
func (s SlotLine) Points() []geo.Vec2 {
	out := make([]geo.Vec2, 0, s.Count)
	for i := 0; i < s.Count; i++ {
		out = append(out, s.Start.Vec().Add(s.Step.Vec().Scale(float64(i))))
	}
	return out
}

// Range is a closed interval sampled uniformly.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// IsZero reports whether the range was left unset.
func (r Range) IsZero() bool { return r.Min == 0 && r.Max == 0 }

// Sample maps u in [0, 1) onto the range.
func (r Range) Sample(u float64) float64 {
	return r.Min + (r.Max-r.Min)*u
}

// Agents configures who enters the store, when, and what they visit.
type Agents struct {
	SpawnRate        float64   `yaml:"spawn_rate" json:"spawn_rate"`
	NAgents          int       `yaml:"n_agents" json:"n_agents"`
	MaxSpawnTime     float64   `yaml:"max_spawn_time" json:"max_spawn_time"`
	MaxAgents        int       `yaml:"max_agents" json:"max_agents"`
	MinStops         int       `yaml:"min_stops" json:"min_stops"`
	Dwell            Range     `yaml:"dwell" json:"dwell"`
	SpawnPoint       Point     `yaml:"spawn_point" json:"spawn_point"`
	EntrancePoints   []Point   `yaml:"entrance_points" json:"entrance_points"`
	ExitSequence     []Point   `yaml:"exit_sequence" json:"exit_sequence"`
	PointsOfInterest []POI     `yaml:"points_of_interest" json:"points_of_interest"`
	RateNoise        RateNoise `yaml:"rate_noise" json:"rate_noise"`
}

// ExitWaypoints returns the exit sequence as world points.
func (a Agents) ExitWaypoints() []geo.Vec2 {
	out := make([]geo.Vec2, len(a.ExitSequence))
	for i, p := range a.ExitSequence {
		out[i] = p.Vec()
	}
	return out
}

// POI is a shelf location a shopper may choose to visit.
type POI struct {
	Name  string  `yaml:"name" json:"name"`
	Pos   Point   `yaml:"pos" json:"pos"`
	Prob  float64 `yaml:"prob" json:"prob"`
	Dwell Range   `yaml:"dwell" json:"dwell"`
}

// RateNoise modulates the arrival rate with smooth 1D noise. A zero
// amplitude disables it.
type RateNoise struct {
	Amplitude float64 `yaml:"amplitude" json:"amplitude"`
	Scale     float64 `yaml:"scale" json:"scale"`
}
