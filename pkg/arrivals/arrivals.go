// Package arrivals creates shoppers: it draws each shopper's strategic stops
// from the store's points of interest and schedules when shoppers walk in.
package arrivals

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/aquilax/go-perlin"
	"github.com/samber/lo"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/agent"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/routing"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/spec"
)

// Perlin octave settings for the arrival rate modulation.
const (
	noiseAlpha   = 2.0
	noiseBeta    = 2.0
	noiseOctaves = 3
)

// RouteBuilder joins strategic stops into a walkable path.
type RouteBuilder interface {
	BuildRoute(stops []routing.Stop) []agent.PathNode
}

// Generator produces shoppers for one run. It is deterministic for a given
// store spec and seed.
type Generator struct {
	cfg     spec.Agents
	physics spec.Physics
	reach   float64
	routes  RouteBuilder
	logger  *slog.Logger

	rng    *rand.Rand
	noise  *perlin.Perlin
	nextID int

	nextArrival float64
	spawned     int
	turnedAway  int
}

// New creates a generator for s. routes may be nil, in which case shoppers
// walk straight between their stops.
func New(s *spec.StoreSpec, routes RouteBuilder, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		cfg:     s.Agents,
		physics: s.Physics,
		reach:   s.Routing.WaypointThreshold,
		routes:  routes,
		logger:  logger,
		rng:     rand.New(rand.NewSource(s.StreamSeed(spec.StreamArrivals))),
		noise:   perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, s.StreamSeed(spec.StreamArrivals)),
	}
	g.nextArrival = g.candidate(0)
	return g
}

// Spawned returns the number of shoppers created so far.
func (g *Generator) Spawned() int { return g.spawned }

// TurnedAway returns the number of arrivals dropped because the store was
// at capacity.
func (g *Generator) TurnedAway() int { return g.turnedAway }

// Stops draws one shopper's strategic stops: the spawn point, the entrance
// points, then the chosen points of interest ordered left to right, each
// with its dwell time.
func (g *Generator) Stops() []routing.Stop {
	stops := []routing.Stop{{Name: "spawn", Pos: g.cfg.SpawnPoint.Vec()}}
	for _, p := range g.cfg.EntrancePoints {
		stops = append(stops, routing.Stop{Name: "entrance", Pos: p.Vec()})
	}

	chosen := g.choosePOIs()
	sort.SliceStable(chosen, func(i, j int) bool {
		if chosen[i].Pos.X != chosen[j].Pos.X {
			return chosen[i].Pos.X < chosen[j].Pos.X
		}
		return chosen[i].Pos.Y < chosen[j].Pos.Y
	})
	for _, poi := range chosen {
		dwell := poi.Dwell
		if dwell.IsZero() {
			dwell = g.cfg.Dwell
		}
		stops = append(stops, routing.Stop{
			Name: poi.Name,
			Pos:  poi.Pos.Vec(),
			Wait: dwell.Sample(g.rng.Float64()),
		})
	}
	return stops
}

// choosePOIs includes each point independently with its probability, then
// tops up to MinStops by weighted draws from the rest.
func (g *Generator) choosePOIs() []spec.POI {
	var chosen, rest []spec.POI
	for _, poi := range g.cfg.PointsOfInterest {
		if g.rng.Float64() < poi.Prob {
			chosen = append(chosen, poi)
		} else {
			rest = append(rest, poi)
		}
	}

	for len(chosen) < g.cfg.MinStops && len(rest) > 0 {
		i := g.weightedPick(rest)
		chosen = append(chosen, rest[i])
		rest = append(rest[:i], rest[i+1:]...)
	}
	return chosen
}

// weightedPick returns an index drawn in proportion to Prob, or uniformly
// when every weight is zero.
func (g *Generator) weightedPick(pois []spec.POI) int {
	total := lo.SumBy(pois, func(p spec.POI) float64 { return p.Prob })
	if total <= 0 {
		return g.rng.Intn(len(pois))
	}
	r := g.rng.Float64() * total
	for i, p := range pois {
		r -= p.Prob
		if r < 0 {
			return i
		}
	}
	return len(pois) - 1
}

// NewShopper builds a shopper with a fresh route that becomes active at
// spawnTime.
func (g *Generator) NewShopper(spawnTime float64) *agent.Agent {
	stops := g.Stops()
	var path []agent.PathNode
	if g.routes != nil {
		path = g.routes.BuildRoute(stops)
	} else {
		path = lo.Map(stops, func(s routing.Stop, _ int) agent.PathNode {
			return agent.PathNode{Pos: s.Pos, Wait: s.Wait}
		})
	}

	a := agent.New(g.nextID, path, spawnTime)
	g.nextID++
	g.spawned++
	if g.physics.DesiredSpeed > 0 {
		a.DesiredSpeed = g.physics.DesiredSpeed
	}
	if g.physics.Radius > 0 {
		a.Radius = g.physics.Radius
	}
	if g.reach > 0 {
		a.Threshold = g.reach
	}
	g.logger.Debug("shopper created", "agent", a.ID, "spawn_time", spawnTime, "stops", len(stops))
	return a
}

// InitialRoster creates NAgents shoppers with spawn times drawn uniformly
// from [0, MaxSpawnTime], in creation order.
func (g *Generator) InitialRoster() []*agent.Agent {
	out := make([]*agent.Agent, 0, g.cfg.NAgents)
	for i := 0; i < g.cfg.NAgents; i++ {
		out = append(out, g.NewShopper(g.rng.Float64()*g.cfg.MaxSpawnTime))
	}
	return out
}

// Rate returns the instantaneous arrival rate at time t in shoppers per
// second, the base rate scaled by smooth noise.
func (g *Generator) Rate(t float64) float64 {
	rate := g.cfg.SpawnRate
	if rate <= 0 {
		return 0
	}
	if !g.modulated() {
		return rate
	}
	n := g.cfg.RateNoise
	v := lo.Clamp(g.noise.Noise1D(t*n.Scale), -1, 1)
	return rate * math.Max(0, 1+n.Amplitude*v)
}

func (g *Generator) modulated() bool {
	return g.cfg.RateNoise.Amplitude != 0 && g.cfg.RateNoise.Scale != 0
}

// peakRate bounds Rate from above.
func (g *Generator) peakRate() float64 {
	peak := math.Max(0, g.cfg.SpawnRate)
	if g.modulated() {
		peak *= 1 + math.Abs(g.cfg.RateNoise.Amplitude)
	}
	return peak
}

// candidate returns the next candidate arrival after t of a Poisson process
// at the peak rate.
func (g *Generator) candidate(t float64) float64 {
	peak := g.peakRate()
	if peak <= 0 {
		return math.Inf(1)
	}
	return t + g.rng.ExpFloat64()/peak
}

// Arrivals returns the shoppers arriving up to time now. Candidates of the
// peak-rate process are kept with probability Rate/peak, which yields a
// Poisson process with the modulated rate. live is the number of shoppers
// in the store; arrivals beyond MaxAgents are turned away.
func (g *Generator) Arrivals(now float64, live int) []*agent.Agent {
	var out []*agent.Agent
	for g.nextArrival <= now {
		t := g.nextArrival
		g.nextArrival = g.candidate(t)
		if g.rng.Float64()*g.peakRate() >= g.Rate(t) {
			continue
		}
		if g.cfg.MaxAgents > 0 && live+len(out) >= g.cfg.MaxAgents {
			g.turnedAway++
			continue
		}
		out = append(out, g.NewShopper(t))
	}
	return out
}
