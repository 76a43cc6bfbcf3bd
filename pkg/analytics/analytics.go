// Package analytics collects per-tick measurements of a run and reduces them
// to a summary of occupancy, queueing and walking behaviour.
package analytics

import (
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/agent"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/sim"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/validation"
)

// stallSpeed is the speed below which an agent with somewhere to go counts
// as blocked.
const stallSpeed = 0.05

// Collector accumulates measurements tick by tick. Register Hook with a
// simulation, or feed Record directly.
type Collector struct {
	RunID string

	area        float64
	cashiers    int
	sampleEvery int

	ticks    int
	now      float64
	queueSum float64
	maxQueue int
	busySum  float64
	speedSum float64
	speedN   int
	peakOcc  int

	entered      map[int]float64
	stalled      map[int]float64
	longestStall float64
	stays        []float64

	timeline []Sample
}

// NewCollector creates a collector for a floor of the given area with the
// given number of cashiers. Every sampleEvery-th tick is kept in the
// timeline; zero keeps none.
func NewCollector(area float64, cashiers, sampleEvery int) *Collector {
	return &Collector{
		RunID:       uuid.NewString(),
		area:        area,
		cashiers:    cashiers,
		sampleEvery: sampleEvery,
		entered:     make(map[int]float64),
		stalled:     make(map[int]float64),
	}
}

// For creates a collector sized for s and registers it as a tick hook.
func For(s *sim.Simulation, sampleEvery int) *Collector {
	env := s.Spec().Environment
	c := NewCollector(env.Bounds().Area(), len(env.Cashiers), sampleEvery)
	s.OnTick(c.Hook)
	return c
}

// Hook records the simulation's current state. It has the sim.TickHook
// signature.
func (c *Collector) Hook(s *sim.Simulation) {
	c.Record(s.Time(), s.DT(), s.Agents(), s.Queue().Len(), s.Queue().Busy())
}

// Record adds one tick of observations: the roster at time t, the line
// length and the number of busy cashiers.
func (c *Collector) Record(t, dt float64, agents []*agent.Agent, queued, busy int) {
	c.ticks++
	c.now = t + dt
	c.queueSum += float64(queued)
	c.maxQueue = max(c.maxQueue, queued)
	c.busySum += float64(busy)

	occ := 0
	tickSpeed, tickN := 0.0, 0
	for _, a := range agents {
		if a.Exited {
			if in, ok := c.entered[a.ID]; ok {
				c.stays = append(c.stays, t-in)
				delete(c.entered, a.ID)
				delete(c.stalled, a.ID)
			}
			continue
		}
		if !a.Active {
			continue
		}
		occ++
		if _, ok := c.entered[a.ID]; !ok {
			c.entered[a.ID] = t
		}

		if a.IsWaiting || a.Phase == agent.InQueue {
			delete(c.stalled, a.ID)
			continue
		}
		speed := a.Velocity.Length()
		tickSpeed += speed
		tickN++

		if _, hasGoal := a.Goal(); hasGoal && speed < stallSpeed {
			c.stalled[a.ID] += dt
			c.longestStall = max(c.longestStall, c.stalled[a.ID])
		} else {
			delete(c.stalled, a.ID)
		}
	}
	c.peakOcc = max(c.peakOcc, occ)
	c.speedSum += tickSpeed
	c.speedN += tickN

	if c.sampleEvery > 0 && (c.ticks-1)%c.sampleEvery == 0 {
		mean := 0.0
		if tickN > 0 {
			mean = tickSpeed / float64(tickN)
		}
		c.timeline = append(c.timeline, Sample{
			Time:      t,
			Occupancy: occ,
			Queue:     queued,
			Busy:      busy,
			MeanSpeed: mean,
		})
	}
}

// Summary reduces the recorded ticks.
func (c *Collector) Summary() *Summary {
	sum := &Summary{
		RunID:          c.RunID,
		Duration:       c.now,
		Ticks:          c.ticks,
		Exited:         len(c.stays),
		StillIn:        len(c.entered),
		MaxQueueLength: c.maxQueue,
		LongestStall:   c.longestStall,
		PeakOccupancy:  c.peakOcc,
		Timeline:       c.timeline,
	}
	if c.ticks > 0 {
		sum.MeanQueueLength = c.queueSum / float64(c.ticks)
		if c.cashiers > 0 {
			sum.CashierUse = c.busySum / float64(c.ticks*c.cashiers)
		}
	}
	if c.speedN > 0 {
		sum.MeanSpeed = c.speedSum / float64(c.speedN)
	}
	if len(c.stays) > 0 {
		sum.MeanTimeInStore = lo.Mean(c.stays)
		sum.MaxTimeInStore = lo.Max(c.stays)
	}
	if c.area > 0 {
		sum.PeakDensity = float64(c.peakOcc) / c.area
	}
	if c.now > 0 {
		sum.Throughput = float64(sum.Exited) / (c.now / 60)
	}
	return sum
}

// Summarize completes the collector's summary with the simulation's arrival
// counts and checks it for signs of an overloaded or blocked store.
func Summarize(c *Collector, s *sim.Simulation) (*Summary, *validation.Report) {
	sum := c.Summary()
	sum.Store = s.Spec().Name
	sum.Spawned = s.Arrivals().Spawned()
	sum.TurnedAway = s.Arrivals().TurnedAway()
	sum.Replans = s.Replans()

	report := validation.NewReport()
	validateRun(s, sum, report)
	return sum, report
}
