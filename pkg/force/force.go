// Package force implements the social force model: a goal-seeking drive,
// exponential repulsion from neighbors, walls and counters, body contact and
// sliding friction, plus a hard push-out from counter hit boxes.
package force

import (
	"math"
	"math/rand"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/agent"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/spec"
)

// jitterScale bounds the random separation given to coincident agents.
const jitterScale = 0.01

// Params are the model constants.
type Params struct {
	A         float64 // neighbor repulsion strength
	B         float64 // neighbor repulsion range
	AW        float64 // wall repulsion strength
	BW        float64 // wall repulsion range
	Tau       float64 // relaxation time toward desired velocity
	Kappa     float64 // sliding friction coefficient
	Stiffness float64 // body contact stiffness
	Damping   float64 // linear velocity damping
}

// DefaultParams returns the constants of a calibrated small-store run.
func DefaultParams() Params {
	return Params{
		A:         1.5,
		B:         0.4,
		AW:        10,
		BW:        0.08,
		Tau:       0.6,
		Stiffness: 200,
		Damping:   0.2,
	}
}

// ParamsFromSpec copies the physics section of a store spec.
func ParamsFromSpec(p spec.Physics) Params {
	return Params{
		A:         p.A,
		B:         p.B,
		AW:        p.AW,
		BW:        p.BW,
		Tau:       p.Tau,
		Kappa:     p.Kappa,
		Stiffness: p.BodyStiffness,
		Damping:   p.Damping,
	}
}

// Model evaluates forces. It is not safe for concurrent use: the jitter
// source is shared.
type Model struct {
	Params
	rects []geo.Rect
	rng   *rand.Rand
}

// NewModel creates a model. rects are solid counters that repel like walls;
// seed drives the jitter applied to coincident agents.
func NewModel(p Params, rects []geo.Rect, seed int64) *Model {
	return &Model{
		Params: p,
		rects:  rects,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Compute returns the net force on a: goal drive, neighbor and wall
// interaction, counter repulsion and damping.
func (m *Model) Compute(a *agent.Agent, neighbors []*agent.Agent, walls []geo.Segment) geo.Vec2 {
	f := m.GoalForce(a)
	f = f.Add(m.NeighborForce(a, neighbors))
	f = f.Add(m.WallForce(a, walls))
	f = f.Add(m.RectForce(a, m.rects))
	return f.Add(a.Velocity.Scale(-m.Damping))
}

// GoalForce relaxes the velocity toward the desired velocity over Tau.
// An agent without a goal is braked to rest.
func (m *Model) GoalForce(a *agent.Agent) geo.Vec2 {
	desired := a.DesiredDirection().Scale(a.DesiredSpeed)
	return desired.Sub(a.Velocity).Scale(1 / m.Tau)
}

// NeighborForce sums the interaction with each neighbor.
func (m *Model) NeighborForce(a *agent.Agent, neighbors []*agent.Agent) geo.Vec2 {
	var f geo.Vec2
	for _, o := range neighbors {
		if o == a || !o.Active {
			continue
		}
		d := a.Position.Sub(o.Position)
		dist := d.Length()
		if dist == 0 {
			d = m.jitter()
			dist = d.Length()
		}
		n := d.Scale(1 / dist)
		overlap := a.Radius + o.Radius - dist

		f = f.Add(n.Scale(m.A * math.Exp(overlap/m.B)))
		if overlap > 0 {
			t := n.Perp()
			slide := o.Velocity.Sub(a.Velocity).Dot(t)
			f = f.Add(n.Scale(m.Stiffness * overlap))
			f = f.Add(t.Scale(m.Kappa * overlap * slide))
		}
	}
	return f
}

// WallForce sums the interaction with each wall segment, measured from the
// closest point on the segment. Zero-length walls and walls passing exactly
// through the agent's center are skipped.
func (m *Model) WallForce(a *agent.Agent, walls []geo.Segment) geo.Vec2 {
	var f geo.Vec2
	for _, w := range walls {
		if w.IsDegenerate() {
			continue
		}
		f = f.Add(m.obstacleForce(a, w.ClosestPoint(a.Position)))
	}
	return f
}

// RectForce sums the repulsion of solid rectangles, using the same law as
// walls. Agents whose center is inside a rectangle get nothing here; see
// ResolveRect.
func (m *Model) RectForce(a *agent.Agent, rects []geo.Rect) geo.Vec2 {
	var f geo.Vec2
	for _, r := range rects {
		f = f.Add(m.obstacleForce(a, r.ClosestPoint(a.Position)))
	}
	return f
}

func (m *Model) obstacleForce(a *agent.Agent, closest geo.Vec2) geo.Vec2 {
	d := a.Position.Sub(closest)
	dist := d.Length()
	if dist == 0 {
		return geo.Vec2{}
	}
	n := d.Scale(1 / dist)
	overlap := a.Radius - dist

	f := n.Scale(m.AW * math.Exp(overlap/m.BW))
	if overlap > 0 {
		t := n.Perp()
		f = f.Add(n.Scale(m.Stiffness * overlap))
		f = f.Sub(t.Scale(m.Kappa * overlap * a.Velocity.Dot(t)))
	}
	return f
}

func (m *Model) jitter() geo.Vec2 {
	d := geo.V(m.rng.Float64()*jitterScale, m.rng.Float64()*jitterScale)
	if d.IsZero() {
		return geo.V(jitterScale, 0)
	}
	return d
}

// ResolveRect pushes an agent whose body overlaps r back onto the nearest
// edge and removes the velocity component pointing into r. It reports
// whether a correction was made.
func ResolveRect(a *agent.Agent, r geo.Rect) bool {
	p := a.Position
	closest := r.ClosestPoint(p)
	delta := p.Sub(closest)
	distSq := delta.LengthSq()
	if distSq >= a.Radius*a.Radius {
		return false
	}

	var n geo.Vec2
	if dist := math.Sqrt(distSq); dist > 0 {
		n = delta.Scale(1 / dist)
		a.Position = closest.Add(n.Scale(a.Radius))
	} else {
		// Center inside: leave through the nearest side.
		left, right := p.X-r.Min.X, r.Max.X-p.X
		bottom, top := p.Y-r.Min.Y, r.Max.Y-p.Y
		switch math.Min(math.Min(left, right), math.Min(bottom, top)) {
		case left:
			n = geo.V(-1, 0)
			a.Position.X = r.Min.X - a.Radius
		case right:
			n = geo.V(1, 0)
			a.Position.X = r.Max.X + a.Radius
		case bottom:
			n = geo.V(0, -1)
			a.Position.Y = r.Min.Y - a.Radius
		default:
			n = geo.V(0, 1)
			a.Position.Y = r.Max.Y + a.Radius
		}
	}

	if vn := a.Velocity.Dot(n); vn < 0 {
		a.Velocity = a.Velocity.Sub(n.Scale(vn))
	}
	return true
}
