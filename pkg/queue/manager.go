// Package queue runs the checkout state machine: shoppers who finish their
// route are sent to a free cashier or to the back of a single FIFO line, are
// served, and are then walked out through the exit waypoints.
//
// A cashier is claimed in two steps. It is reserved while the agent walks to
// it and assigned once the agent starts being served, so two agents are never
// routed to the same counter.
package queue

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/samber/lo"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/agent"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/spec"
)

// NoAgent marks an empty cashier slot.
const NoAgent = -1

// queueDamping scales velocity when an agent settles into its slot.
const queueDamping = 0.3

// ErrNoSlots is returned when a manager is configured without queue slots.
var ErrNoSlots = errors.New("queue: no queue slots")

// Planner finds a walkable path. The returned points exclude from.
type Planner interface {
	Plan(from, to geo.Vec2) ([]geo.Vec2, error)
}

// Cashier is one checkout counter.
type Cashier struct {
	ID           int      `json:"id"`
	ServicePoint geo.Vec2 `json:"service_point"`
	Assigned     int      `json:"assigned"`
	Reserved     int      `json:"reserved"`
}

// Free reports whether the cashier is neither serving nor expecting anyone.
func (c Cashier) Free() bool {
	return c.Assigned == NoAgent && c.Reserved == NoAgent
}

// Holder returns the agent holding the cashier, or NoAgent.
func (c Cashier) Holder() int {
	if c.Assigned != NoAgent {
		return c.Assigned
	}
	return c.Reserved
}

// Config describes the checkout area.
type Config struct {
	ServicePoints []geo.Vec2
	Slots         []geo.Vec2
	Exits         []geo.Vec2
	ServiceTime   spec.Range
	Seed          int64
	Planner       Planner // nil walks straight to every target
	Logger        *slog.Logger
}

// Manager owns cashier and queue state. It is driven once per tick by the
// simulation and is not safe for concurrent use.
type Manager struct {
	cashiers    []Cashier
	slots       []geo.Vec2
	exits       []geo.Vec2
	serviceTime spec.Range
	rng         *rand.Rand
	planner     Planner
	logger      *slog.Logger

	queue     []*agent.Agent
	slotOf    map[int]int
	cashierOf map[int]int
}

// New creates a manager with every cashier free and an empty line.
func New(cfg Config) (*Manager, error) {
	if len(cfg.Slots) == 0 {
		return nil, ErrNoSlots
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st := cfg.ServiceTime
	if st.IsZero() {
		st = spec.Default().Queue.ServiceTime
	}

	m := &Manager{
		slots:       append([]geo.Vec2(nil), cfg.Slots...),
		exits:       append([]geo.Vec2(nil), cfg.Exits...),
		serviceTime: st,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		planner:     cfg.Planner,
		logger:      logger,
		slotOf:      make(map[int]int),
		cashierOf:   make(map[int]int),
	}
	for i, p := range cfg.ServicePoints {
		m.cashiers = append(m.cashiers, Cashier{
			ID:           i,
			ServicePoint: p,
			Assigned:     NoAgent,
			Reserved:     NoAgent,
		})
	}
	return m, nil
}

// NewFromSpec builds a manager for the store's cashiers, slot line and exit
// sequence.
func NewFromSpec(s *spec.StoreSpec, planner Planner, logger *slog.Logger) (*Manager, error) {
	points := lo.Map(s.Environment.Cashiers, func(c spec.Cashier, _ int) geo.Vec2 {
		return c.ServicePoint.Vec()
	})
	return New(Config{
		ServicePoints: points,
		Slots:         s.Queue.Slots.Points(),
		Exits:         s.Agents.ExitWaypoints(),
		ServiceTime:   s.Queue.ServiceTime,
		Seed:          s.StreamSeed(spec.StreamCheckout),
		Planner:       planner,
		Logger:        logger,
	})
}

// Update advances every live agent's checkout phase, in roster order, then
// hands any cashier left free to the head of the line.
func (m *Manager) Update(agents []*agent.Agent) {
	for _, a := range agents {
		if !a.Active || a.Exited {
			continue
		}
		switch a.Phase {
		case agent.Shopping:
			if a.FinishedPath {
				m.finishShopping(a)
			}
		case agent.ToQueueSlot:
			if a.FinishedPath {
				a.Phase = agent.InQueue
				a.Velocity = a.Velocity.Scale(queueDamping)
				a.ClearPath()
			}
		case agent.ToCashier:
			if a.IsWaiting || a.FinishedPath {
				m.startService(a)
			}
		case agent.AtCashier:
			if a.FinishedPath {
				m.finishService(a)
			}
		case agent.ToExit:
			if a.FinishedPath {
				m.nextExit(a)
			}
		}
	}
	for i := range m.cashiers {
		m.promote(i)
	}
}

func (m *Manager) finishShopping(a *agent.Agent) {
	if _, idx, ok := lo.FindIndexOf(m.cashiers, Cashier.Free); ok {
		m.reserve(a, idx)
		return
	}
	m.queue = append(m.queue, a)
	a.Phase = agent.ToQueueSlot
	m.assignSlots()
}

// reserve claims cashier idx for a and sends it to the service point. The
// final node's dwell is the service time.
func (m *Manager) reserve(a *agent.Agent, idx int) {
	c := &m.cashiers[idx]
	if !c.Free() {
		panic(fmt.Sprintf("queue: reserving cashier %d for agent %d while held by agent %d", c.ID, a.ID, c.Holder()))
	}
	if held, ok := m.cashierOf[a.ID]; ok {
		panic(fmt.Sprintf("queue: agent %d already holds cashier %d", a.ID, held))
	}
	c.Reserved = a.ID
	m.cashierOf[a.ID] = idx

	m.plan(a, c.ServicePoint, m.serviceTime.Sample(m.rng.Float64()))
	a.Phase = agent.ToCashier
	m.logger.Debug("cashier reserved", "agent", a.ID, "cashier", c.ID)
}

func (m *Manager) startService(a *agent.Agent) {
	idx, ok := m.cashierOf[a.ID]
	if !ok || m.cashiers[idx].Reserved != a.ID {
		panic(fmt.Sprintf("queue: agent %d reached a cashier without a reservation", a.ID))
	}
	c := &m.cashiers[idx]
	c.Reserved = NoAgent
	c.Assigned = a.ID
	a.Phase = agent.AtCashier
}

func (m *Manager) finishService(a *agent.Agent) {
	idx, ok := m.cashierOf[a.ID]
	if !ok || m.cashiers[idx].Assigned != a.ID {
		panic(fmt.Sprintf("queue: agent %d finished service without an assigned cashier", a.ID))
	}
	m.cashiers[idx].Assigned = NoAgent
	delete(m.cashierOf, a.ID)

	a.Exit = &agent.ExitPlan{Waypoints: m.exits}
	a.Phase = agent.ToExit
	m.walkExit(a)
	m.promote(idx)
}

func (m *Manager) nextExit(a *agent.Agent) {
	if a.Exit != nil {
		a.Exit.Index++
	}
	m.walkExit(a)
}

// walkExit heads for the current exit waypoint, or retires the agent once
// the sequence is done.
func (m *Manager) walkExit(a *agent.Agent) {
	wp, ok := a.Exit.Current()
	if !ok {
		a.MarkExited()
		m.logger.Debug("agent exited", "agent", a.ID)
		return
	}
	m.plan(a, wp, 0)
}

// promote hands a free cashier to the head of the line.
func (m *Manager) promote(idx int) {
	if len(m.queue) == 0 || !m.cashiers[idx].Free() {
		return
	}
	head := m.queue[0]
	m.queue = lo.Drop(m.queue, 1)
	delete(m.slotOf, head.ID)
	m.reserve(head, idx)
	m.assignSlots()
}

// assignSlots routes the i-th waiting agent to slot min(i, n-1). Agents whose
// slot is unchanged keep their current path.
func (m *Manager) assignSlots() {
	last := len(m.slots) - 1
	for i, a := range m.queue {
		slot := min(i, last)
		if prev, ok := m.slotOf[a.ID]; ok && prev == slot {
			continue
		}
		m.slotOf[a.ID] = slot
		m.plan(a, m.slots[slot], 0)
		a.Phase = agent.ToQueueSlot
	}
}

// plan replaces a's path with a route to target. If no route is found the
// agent walks straight at the target.
func (m *Manager) plan(a *agent.Agent, target geo.Vec2, wait float64) {
	pts := []geo.Vec2{target}
	if m.planner != nil {
		found, err := m.planner.Plan(a.Position, target)
		switch {
		case err != nil:
			m.logger.Debug("path planning failed, walking direct",
				"agent", a.ID, "from", a.Position, "to", target, "error", err)
		case len(found) > 0:
			pts = found
		}
	}
	nodes := lo.Map(pts, func(p geo.Vec2, _ int) agent.PathNode {
		return agent.PathNode{Pos: p}
	})
	nodes[len(nodes)-1].Wait = wait
	a.SetPath(nodes)
}

// Queue returns the waiting agents, head first.
func (m *Manager) Queue() []*agent.Agent {
	return append([]*agent.Agent(nil), m.queue...)
}

// Len returns the number of waiting agents.
func (m *Manager) Len() int { return len(m.queue) }

// Cashiers returns a copy of the cashier records.
func (m *Manager) Cashiers() []Cashier {
	return append([]Cashier(nil), m.cashiers...)
}

// Busy returns the number of cashiers currently reserved or serving.
func (m *Manager) Busy() int {
	return lo.CountBy(m.cashiers, func(c Cashier) bool { return !c.Free() })
}

// Slots returns the queue slot positions, head first.
func (m *Manager) Slots() []geo.Vec2 { return m.slots }

// SlotOf returns the slot index of a waiting agent.
func (m *Manager) SlotOf(id int) (int, bool) {
	s, ok := m.slotOf[id]
	return s, ok
}

// CashierOf returns the ID of the cashier reserved for or serving an agent.
func (m *Manager) CashierOf(id int) (int, bool) {
	idx, ok := m.cashierOf[id]
	if !ok {
		return NoAgent, false
	}
	return m.cashiers[idx].ID, true
}

// CheckInvariants verifies that every agent holds at most one of a line
// position, a reservation or an assignment, and that no cashier is held
// twice. It returns every violation found.
func (m *Manager) CheckInvariants() error {
	var errs []error

	holders := 0
	for i, c := range m.cashiers {
		if c.Assigned != NoAgent && c.Reserved != NoAgent {
			errs = append(errs, fmt.Errorf("cashier %d assigned to %d and reserved by %d", c.ID, c.Assigned, c.Reserved))
		}
		if h := c.Holder(); h != NoAgent {
			holders++
			if idx, ok := m.cashierOf[h]; !ok || idx != i {
				errs = append(errs, fmt.Errorf("cashier %d held by agent %d not recorded as its holder", c.ID, h))
			}
		}
	}
	if holders != len(m.cashierOf) {
		errs = append(errs, fmt.Errorf("%d cashier holders but %d ownership records", holders, len(m.cashierOf)))
	}

	ids := lo.Map(m.queue, func(a *agent.Agent, _ int) int { return a.ID })
	for _, dup := range lo.FindDuplicates(ids) {
		errs = append(errs, fmt.Errorf("agent %d queued twice", dup))
	}
	if len(m.slotOf) != len(m.queue) {
		errs = append(errs, fmt.Errorf("%d slot records for %d queued agents", len(m.slotOf), len(m.queue)))
	}
	last := len(m.slots) - 1
	for i, a := range m.queue {
		if _, ok := m.cashierOf[a.ID]; ok {
			errs = append(errs, fmt.Errorf("agent %d both queued and holding a cashier", a.ID))
		}
		if s, ok := m.slotOf[a.ID]; !ok || s != min(i, last) {
			errs = append(errs, fmt.Errorf("agent %d at line position %d has slot %d", a.ID, i, s))
		}
		if !a.Phase.Queued() {
			errs = append(errs, fmt.Errorf("agent %d queued in phase %s", a.ID, a.Phase))
		}
	}

	if len(m.queue) > 0 && lo.ContainsBy(m.cashiers, Cashier.Free) {
		errs = append(errs, fmt.Errorf("%d agents waiting while a cashier is free", len(m.queue)))
	}
	return errors.Join(errs...)
}
