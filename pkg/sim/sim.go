// Package sim advances a store simulation one fixed time step at a time.
//
// Each tick runs, in order: spawn timers and new arrivals, the agent grid
// rebuild, force computation with integration and counter collision for
// every live agent in roster order, the checkout state machine, replanning of
// stalled walkers, tick hooks, removal of exited agents, and finally the
// clock advance. Agents are
// processed in roster order and see positions already updated this tick,
// so a run is reproducible only if that order is kept.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/agent"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/arrivals"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/force"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/queue"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/routing"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/spatial"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/spec"
)

const (
	// stallTimeout is how long an agent may go without closing in on its
	// goal before its current leg is planned again from where it stands.
	stallTimeout = 4.0
	// progressMargin is the distance gain that counts as progress.
	progressMargin = 0.1
)

// progress tracks the best distance an agent has reached to its goal.
type progress struct {
	goal  geo.Vec2
	best  float64
	since float64
}

// TickHook is called once per tick after the checkout update and before
// exited agents are dropped from the roster.
type TickHook func(s *Simulation)

// Simulation owns the roster and every per-run component. It is driven by a
// single goroutine.
type Simulation struct {
	spec   *spec.StoreSpec
	logger *slog.Logger

	dt    float64
	now   float64
	ticks int

	agents []*agent.Agent
	ids    map[int]bool
	exited int

	planner  *routing.Planner
	model    *force.Model
	grid     *spatial.AgentGrid
	walls    *spatial.WallGrid
	counters []geo.Rect
	checkout *queue.Manager
	arrivals *arrivals.Generator

	neighborRange float64
	wallRange     float64
	hooks         []TickHook

	progress map[int]progress
	replans  int

	nbuf []*agent.Agent
	wbuf []geo.Segment
}

// New wires a simulation for s and seeds its roster with the initial
// shoppers. s should already have passed validation.
func New(s *spec.StoreSpec, logger *slog.Logger) (*Simulation, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if s.DT <= 0 {
		return nil, fmt.Errorf("sim: time step must be positive, got %v", s.DT)
	}

	planner := routing.NewStorePlanner(s, logger)
	checkout, err := queue.NewFromSpec(s, planner, logger)
	if err != nil {
		return nil, fmt.Errorf("sim: building checkout: %w", err)
	}

	// Ranges cover at least three decay lengths of each repulsion.
	neighborRange := math.Max(s.Physics.NeighborRange, 3*s.Physics.B)
	wallRange := math.Max(s.Physics.WallRange, 3*s.Physics.BW+s.Physics.Radius)

	sim := &Simulation{
		spec:          s,
		logger:        logger,
		dt:            s.DT,
		ids:           make(map[int]bool),
		progress:      make(map[int]progress),
		planner:       planner,
		model:         force.NewModel(force.ParamsFromSpec(s.Physics), s.Environment.CashierRects(), s.StreamSeed(spec.StreamForces)),
		grid:          spatial.NewAgentGrid(neighborRange),
		walls:         spatial.NewWallGrid(s.Environment.WallSegments(), wallRange),
		counters:      s.Environment.CashierRects(),
		checkout:      checkout,
		arrivals:      arrivals.New(s, planner, logger),
		neighborRange: neighborRange,
		wallRange:     wallRange,
	}
	for _, a := range sim.arrivals.InitialRoster() {
		sim.AddAgent(a)
	}

	logger.Info("simulation ready",
		"store", s.Name,
		"agents", len(sim.agents),
		"cashiers", len(s.Environment.Cashiers),
		"blocked_cells", planner.Grid().BlockedCount())
	return sim, nil
}

// AddAgent appends a to the roster. IDs must be unique among the agents in
// the roster.
func (s *Simulation) AddAgent(a *agent.Agent) {
	if s.ids[a.ID] {
		panic(fmt.Sprintf("sim: duplicate agent id %d", a.ID))
	}
	s.ids[a.ID] = true
	s.agents = append(s.agents, a)
}

// OnTick registers a hook run at the end of every tick.
func (s *Simulation) OnTick(h TickHook) {
	s.hooks = append(s.hooks, h)
}

// Agents returns the live roster in processing order. The slice is owned by
// the simulation and valid until the next tick.
func (s *Simulation) Agents() []*agent.Agent { return s.agents }

// Queue returns the checkout state machine.
func (s *Simulation) Queue() *queue.Manager { return s.checkout }

// Arrivals returns the shopper generator.
func (s *Simulation) Arrivals() *arrivals.Generator { return s.arrivals }

// Planner returns the route planner over the store grid.
func (s *Simulation) Planner() *routing.Planner { return s.planner }

// Spec returns the store spec the simulation was built from.
func (s *Simulation) Spec() *spec.StoreSpec { return s.spec }

// Time returns the simulated time in seconds.
func (s *Simulation) Time() float64 { return s.now }

// DT returns the time step in seconds.
func (s *Simulation) DT() float64 { return s.dt }

// TickCount returns the number of completed ticks.
func (s *Simulation) TickCount() int { return s.ticks }

// Exited returns the number of agents that have left the store.
func (s *Simulation) Exited() int { return s.exited }

// Replans returns the number of times a stalled agent's leg was planned
// again.
func (s *Simulation) Replans() int { return s.replans }

// Live returns the number of agents in the roster that have not exited.
func (s *Simulation) Live() int {
	n := 0
	for _, a := range s.agents {
		if !a.Exited {
			n++
		}
	}
	return n
}

// Tick advances the simulation by one time step.
func (s *Simulation) Tick() {
	s.spawn()
	s.grid.Rebuild(s.agents)

	for _, a := range s.agents {
		if !a.Active || a.Exited {
			continue
		}
		s.nbuf = s.grid.Neighbors(a, s.neighborRange, s.nbuf[:0])
		s.wbuf = s.walls.Nearby(a.Position, s.wallRange, s.wbuf[:0])
		a.Update(s.model.Compute(a, s.nbuf, s.wbuf), s.dt)
		for _, r := range s.counters {
			force.ResolveRect(a, r)
		}
	}

	s.checkout.Update(s.agents)
	if err := s.checkout.CheckInvariants(); err != nil {
		panic(fmt.Sprintf("sim: checkout state corrupted at t=%.2f: %v", s.now, err))
	}
	s.recoverStalled()

	for _, h := range s.hooks {
		h(s)
	}

	s.removeExited()
	s.now += s.dt
	s.ticks++
}

// spawn admits new arrivals and activates every agent whose spawn time has
// come.
func (s *Simulation) spawn() {
	for _, a := range s.arrivals.Arrivals(s.now, s.Live()) {
		s.AddAgent(a)
	}
	for _, a := range s.agents {
		a.Activate(s.now)
	}
}

// recoverStalled replans the current leg of every walking agent that has not
// closed in on its goal for stallTimeout. Agents pinned between a waypoint
// and a shelf end would otherwise hold their cashier or slot forever.
func (s *Simulation) recoverStalled() {
	for _, a := range s.agents {
		goal, ok := a.Goal()
		if !a.Active || a.Exited || a.IsWaiting || !ok {
			delete(s.progress, a.ID)
			continue
		}
		d := a.Position.Distance(goal)
		p, seen := s.progress[a.ID]
		if !seen || p.goal != goal || d < p.best-progressMargin {
			s.progress[a.ID] = progress{goal: goal, best: d, since: s.now}
			continue
		}
		if s.now-p.since < stallTimeout {
			continue
		}
		s.replan(a)
		s.progress[a.ID] = progress{goal: goal, best: d, since: s.now}
	}
}

// replan routes a from its position to its current node and keeps the rest
// of its path. The node itself, with its dwell, stays the end of the leg.
func (s *Simulation) replan(a *agent.Agent) {
	node, _ := a.CurrentNode()
	pts, err := s.planner.Plan(a.Position, node.Pos)
	if err != nil {
		s.logger.Debug("stalled agent has no route",
			"agent", a.ID, "from", a.Position, "to", node.Pos, "error", err)
		return
	}
	if n := len(pts); n > 0 && pts[n-1] == node.Pos {
		pts = pts[:n-1]
	}

	rest := a.Path[a.PathIndex:]
	path := make([]agent.PathNode, 0, len(pts)+len(rest))
	for _, p := range pts {
		path = append(path, agent.PathNode{Pos: p})
	}
	path = append(path, rest...)
	a.SetPath(path)
	s.replans++
	s.logger.Debug("replanned stalled agent",
		"agent", a.ID, "phase", a.Phase, "waypoints", len(path))
}

// removeExited drops exited agents, keeping roster order.
func (s *Simulation) removeExited() {
	kept := s.agents[:0]
	for _, a := range s.agents {
		if a.Exited {
			delete(s.ids, a.ID)
			delete(s.progress, a.ID)
			s.exited++
			continue
		}
		kept = append(kept, a)
	}
	for i := len(kept); i < len(s.agents); i++ {
		s.agents[i] = nil
	}
	s.agents = kept
}

// Run advances up to steps ticks, or the store's step count when steps is not
// positive. The context is checked between ticks only.
func (s *Simulation) Run(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = s.spec.Steps
	}
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Tick()
	}
	s.logger.Info("run finished",
		"ticks", s.ticks,
		"time", s.now,
		"live", s.Live(),
		"exited", s.exited,
		"queued", s.checkout.Len())
	return nil
}
