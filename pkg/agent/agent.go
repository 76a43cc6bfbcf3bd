// Package agent holds the physical and navigational state of one shopper.
package agent

import (
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
)

const (
	// DefaultRadius is the body radius of a shopper in meters.
	DefaultRadius = 0.15
	// DefaultSpeed is the preferred walking speed in m/s.
	DefaultSpeed = 1.3
	// DefaultThreshold is the distance at which a path node counts as reached.
	DefaultThreshold = 0.2

	// waitDamping is applied to velocity on every tick spent dwelling.
	waitDamping = 0.8
	// minGoalDistance guards the direction normalization near the goal.
	minGoalDistance = 1e-6
	// waitEpsilon absorbs the rounding left by subtracting decimal steps
	// from a dwell timer.
	waitEpsilon = 1e-9
)

// PathNode is a single waypoint, optionally carrying a dwell time in seconds.
type PathNode struct {
	Pos  geo.Vec2 `json:"pos"`
	Wait float64  `json:"wait,omitempty"`
}

// ExitPlan is the post-checkout sequence of waypoints, visited one at a time.
type ExitPlan struct {
	Waypoints []geo.Vec2 `json:"waypoints"`
	Index     int        `json:"index"`
}

// Current returns the exit waypoint being walked to, or false when the plan
// is exhausted.
func (e *ExitPlan) Current() (geo.Vec2, bool) {
	if e == nil || e.Index >= len(e.Waypoints) {
		return geo.Vec2{}, false
	}
	return e.Waypoints[e.Index], true
}

// Agent is one pedestrian. The zero value is an inactive agent without a path.
type Agent struct {
	ID           int      `json:"id"`
	Position     geo.Vec2 `json:"position"`
	Velocity     geo.Vec2 `json:"velocity"`
	Radius       float64  `json:"radius"`
	DesiredSpeed float64  `json:"desired_speed"`
	Threshold    float64  `json:"-"`

	Active    bool    `json:"active"`
	Exited    bool    `json:"exited"`
	SpawnTime float64 `json:"spawn_time"`

	Path         []PathNode `json:"path,omitempty"`
	PathIndex    int        `json:"path_index"`
	IsWaiting    bool       `json:"is_waiting"`
	WaitTimer    float64    `json:"wait_timer"`
	FinishedPath bool       `json:"finished_path"`

	Phase Phase     `json:"phase"`
	Exit  *ExitPlan `json:"exit,omitempty"`
}

// New creates an agent standing at the first node of path. It becomes active
// once simulated time reaches spawnTime; a non-positive spawnTime activates it
// immediately.
func New(id int, path []PathNode, spawnTime float64) *Agent {
	a := &Agent{
		ID:           id,
		Radius:       DefaultRadius,
		DesiredSpeed: DefaultSpeed,
		Threshold:    DefaultThreshold,
		SpawnTime:    spawnTime,
		Active:       spawnTime <= 0,
	}
	if len(path) > 0 {
		a.Position = path[0].Pos
	}
	a.SetPath(path)
	return a
}

// Goal returns the position of the current path node, or false when the agent
// has no goal.
func (a *Agent) Goal() (geo.Vec2, bool) {
	if a.FinishedPath || a.PathIndex >= len(a.Path) {
		return geo.Vec2{}, false
	}
	return a.Path[a.PathIndex].Pos, true
}

// CurrentNode returns the path node the agent is heading to or dwelling at.
func (a *Agent) CurrentNode() (PathNode, bool) {
	if a.FinishedPath || a.PathIndex >= len(a.Path) {
		return PathNode{}, false
	}
	return a.Path[a.PathIndex], true
}

// SetPath replaces the route and restarts it from the first node.
// An empty path leaves the agent finished.
func (a *Agent) SetPath(path []PathNode) {
	a.Path = path
	a.PathIndex = 0
	a.IsWaiting = false
	a.WaitTimer = 0
	a.FinishedPath = len(path) == 0
}

// ClearPath drops the route without marking it finished, leaving the agent
// standing with no goal.
func (a *Agent) ClearPath() {
	a.Path = nil
	a.PathIndex = 0
	a.IsWaiting = false
	a.WaitTimer = 0
	a.FinishedPath = false
}

// Activate makes the agent take part in the simulation if its spawn time has
// passed. It reports whether the agent is active afterwards.
func (a *Agent) Activate(now float64) bool {
	if a.Exited {
		return false
	}
	if !a.Active && now >= a.SpawnTime {
		a.Active = true
	}
	return a.Active
}

// MarkExited retires the agent: it stops moving and leaves the live roster.
func (a *Agent) MarkExited() {
	a.Exited = true
	a.Active = false
	a.Velocity = geo.Vec2{}
	a.Phase = Exited
	a.ClearPath()
}

// DesiredDirection returns the unit vector toward the current goal, or the
// zero vector when inactive, waiting, without a goal, or already on it.
func (a *Agent) DesiredDirection() geo.Vec2 {
	if !a.Active || a.IsWaiting {
		return geo.Vec2{}
	}
	goal, ok := a.Goal()
	if !ok {
		return geo.Vec2{}
	}
	d := goal.Sub(a.Position)
	n := d.Length()
	if n <= minGoalDistance {
		return geo.Vec2{}
	}
	return d.Scale(1 / n)
}

// AdvancePath checks whether the current goal is within threshold and, if so,
// either starts the node's dwell or moves on to the next node.
func (a *Agent) AdvancePath(threshold float64) {
	if !a.Active || a.IsWaiting {
		return
	}
	node, ok := a.CurrentNode()
	if !ok {
		return
	}
	if node.Pos.Distance(a.Position) >= threshold {
		return
	}
	if node.Wait > 0 {
		a.IsWaiting = true
		a.WaitTimer = node.Wait
		return
	}
	a.nextNode()
}

func (a *Agent) nextNode() {
	a.PathIndex++
	a.IsWaiting = false
	if a.PathIndex >= len(a.Path) {
		a.FinishedPath = true
	}
}

// Update integrates one time step of length dt under force (unit mass).
// While dwelling the force is ignored and velocity decays instead.
func (a *Agent) Update(force geo.Vec2, dt float64) {
	if !a.Active {
		return
	}

	if a.IsWaiting {
		a.Velocity = a.Velocity.Scale(waitDamping)
		a.Position = a.Position.Add(a.Velocity.Scale(dt))
		a.WaitTimer -= dt
		if a.WaitTimer <= waitEpsilon*max(1, dt) {
			a.WaitTimer = 0
			a.nextNode()
		}
		return
	}

	a.Velocity = a.Velocity.Add(force.Scale(dt))
	a.Position = a.Position.Add(a.Velocity.Scale(dt))

	threshold := a.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	a.AdvancePath(threshold)
}
