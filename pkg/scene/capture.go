package scene

import (
	"time"

	"github.com/samber/lo"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/agent"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/sim"
)

// Capture copies the current state of s into a frame. Scheduled agents that
// have not spawned yet are left out. The frame shares nothing with s.
func Capture(runID string, s *sim.Simulation) *Frame {
	f := NewFrame()

	for _, a := range s.Agents() {
		if !a.Active || a.Exited {
			continue
		}
		addAgent(f, a)
	}

	for _, c := range s.Queue().Cashiers() {
		f.Cashiers = append(f.Cashiers, CashierState{
			ID:           c.ID,
			ServicePoint: c.ServicePoint,
			Serving:      c.Assigned,
			Expecting:    c.Reserved,
		})
	}
	f.Queue = lo.Map(s.Queue().Queue(), func(a *agent.Agent, _ int) int { return a.ID })

	f.Metadata = Metadata{
		RunID:       runID,
		Store:       s.Spec().Name,
		Tick:        s.TickCount(),
		Time:        s.Time(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Bounds:      s.Spec().Environment.Bounds(),
	}
	return f
}

func addAgent(f *Frame, a *agent.Agent) {
	st := AgentState{
		ID:       a.ID,
		Position: a.Position,
		Velocity: a.Velocity,
		Radius:   a.Radius,
		Phase:    a.Phase,
		Waiting:  a.IsWaiting,
	}
	if g, ok := a.Goal(); ok {
		st.Goal = &g
	}
	f.Agents = append(f.Agents, st)

	phase := a.Phase.String()
	f.Groups.Phases[phase] = append(f.Groups.Phases[phase], a.ID)
	if a.IsWaiting {
		f.Groups.Waiting = append(f.Groups.Waiting, a.ID)
	}
}
