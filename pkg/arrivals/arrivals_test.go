package arrivals

import (
	"math"
	"testing"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/routing"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/spec"
)

func testSpec() *spec.StoreSpec {
	s := spec.Default()
	s.Seed = 42
	s.Agents.SpawnPoint = spec.Point{X: -1, Y: 5}
	s.Agents.EntrancePoints = []spec.Point{{X: 0.5, Y: 5}}
	s.Agents.MinStops = 0
	s.Agents.Dwell = spec.Range{Min: 1, Max: 1}
	s.Agents.PointsOfInterest = []spec.POI{
		{Name: "dairy", Pos: spec.Point{X: 8, Y: 2}, Prob: 1},
		{Name: "bakery", Pos: spec.Point{X: 2, Y: 6}, Prob: 1, Dwell: spec.Range{Min: 4, Max: 4}},
		{Name: "produce", Pos: spec.Point{X: 5, Y: 3}, Prob: 1},
		{Name: "frozen", Pos: spec.Point{X: 5, Y: 1}, Prob: 1},
	}
	return s
}

func TestStopsOrderedLeftToRight(t *testing.T) {
	g := New(testSpec(), nil, nil)
	stops := g.Stops()

	want := []string{"spawn", "entrance", "bakery", "frozen", "produce", "dairy"}
	if len(stops) != len(want) {
		t.Fatalf("got %d stops, want %d", len(stops), len(want))
	}
	for i, name := range want {
		if stops[i].Name != name {
			t.Errorf("stop %d = %q, want %q", i, stops[i].Name, name)
		}
	}
}

func TestStopDwellTimes(t *testing.T) {
	g := New(testSpec(), nil, nil)
	for _, s := range g.Stops() {
		var want float64
		switch s.Name {
		case "spawn", "entrance":
			want = 0
		case "bakery":
			want = 4
		default:
			want = 1
		}
		if s.Wait != want {
			t.Errorf("%s wait = %v, want %v", s.Name, s.Wait, want)
		}
	}
}

func TestMinStopsTopUp(t *testing.T) {
	s := testSpec()
	for i := range s.Agents.PointsOfInterest {
		s.Agents.PointsOfInterest[i].Prob = 0
	}
	s.Agents.MinStops = 2
	g := New(s, nil, nil)

	for i := 0; i < 20; i++ {
		if got := len(g.Stops()) - 2; got != 2 {
			t.Fatalf("draw %d: %d points of interest, want 2", i, got)
		}
	}
}

func TestMinStopsCappedByAvailable(t *testing.T) {
	s := testSpec()
	s.Agents.PointsOfInterest[0].Prob = 0
	s.Agents.MinStops = 10
	g := New(s, nil, nil)
	if got := len(g.Stops()) - 2; got != 4 {
		t.Errorf("%d points of interest, want all 4", got)
	}
}

func TestNewShopperWithoutPlannerWalksStraight(t *testing.T) {
	s := testSpec()
	s.Physics.DesiredSpeed = 1.1
	s.Physics.Radius = 0.2
	g := New(s, nil, nil)

	a := g.NewShopper(0)
	if len(a.Path) != 6 {
		t.Fatalf("path has %d nodes, want 6", len(a.Path))
	}
	if a.Position != geo.V(-1, 5) {
		t.Errorf("position = %v, want spawn point", a.Position)
	}
	if a.DesiredSpeed != 1.1 || a.Radius != 0.2 || a.Threshold != s.Routing.WaypointThreshold {
		t.Errorf("agent = speed %v radius %v threshold %v", a.DesiredSpeed, a.Radius, a.Threshold)
	}
	if !a.Active {
		t.Error("shopper spawned at t=0 should be active")
	}
	if b := g.NewShopper(3); b.ID != a.ID+1 || b.Active {
		t.Errorf("second shopper id %d active %v, want id %d inactive", b.ID, b.Active, a.ID+1)
	}
	if g.Spawned() != 2 {
		t.Errorf("spawned = %d, want 2", g.Spawned())
	}
}

func TestNewShopperUsesPlanner(t *testing.T) {
	s, err := spec.LoadProject("../../examples/default-store")
	if err != nil {
		t.Fatal(err)
	}
	g := New(s, routing.NewStorePlanner(s, nil), nil)
	a := g.NewShopper(0)

	if a.Path[0].Pos != s.Agents.SpawnPoint.Vec() {
		t.Errorf("first node = %v, want spawn point", a.Path[0].Pos)
	}
	if len(a.Path) < 2 {
		t.Errorf("path = %v, want a planned route", a.Path)
	}
}

func TestInitialRoster(t *testing.T) {
	s := testSpec()
	s.Agents.NAgents = 25
	s.Agents.MaxSpawnTime = 30
	g := New(s, nil, nil)

	roster := g.InitialRoster()
	if len(roster) != 25 {
		t.Fatalf("roster size = %d, want 25", len(roster))
	}
	for i, a := range roster {
		if a.ID != i {
			t.Errorf("roster[%d].ID = %d", i, a.ID)
		}
		if a.SpawnTime < 0 || a.SpawnTime > 30 {
			t.Errorf("agent %d spawn time %v outside [0, 30]", a.ID, a.SpawnTime)
		}
	}
}

func TestArrivalsMatchRate(t *testing.T) {
	s := testSpec()
	s.Agents.SpawnRate = 2
	g := New(s, nil, nil)

	n := 0
	for now := 0.0; now < 1000; now += 0.5 {
		n += len(g.Arrivals(now, 0))
	}
	if n < 1800 || n > 2200 {
		t.Errorf("%d arrivals in 1000s at 2/s, want about 2000", n)
	}
}

func TestArrivalsSpawnTimesIncrease(t *testing.T) {
	s := testSpec()
	s.Agents.SpawnRate = 5
	g := New(s, nil, nil)

	prev := -1.0
	for now := 0.0; now < 20; now += 0.05 {
		for _, a := range g.Arrivals(now, 0) {
			if a.SpawnTime > now || a.SpawnTime < prev {
				t.Fatalf("spawn time %v at now %v after %v", a.SpawnTime, now, prev)
			}
			prev = a.SpawnTime
		}
	}
}

func TestArrivalsDeterministic(t *testing.T) {
	run := func() []float64 {
		s := testSpec()
		s.Agents.SpawnRate = 1
		s.Agents.RateNoise = spec.RateNoise{Amplitude: 0.5, Scale: 0.05}
		g := New(s, nil, nil)
		var times []float64
		for now := 0.0; now < 60; now += 0.1 {
			for _, a := range g.Arrivals(now, 0) {
				times = append(times, a.SpawnTime)
			}
		}
		return times
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("runs differ: %d vs %d arrivals", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("arrival %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestRateModulationBounds(t *testing.T) {
	s := testSpec()
	s.Agents.SpawnRate = 1
	s.Agents.RateNoise = spec.RateNoise{Amplitude: 0.3, Scale: 0.02}
	g := New(s, nil, nil)

	varied := false
	for t0 := 0.0; t0 < 2000; t0 += 7.3 {
		r := g.Rate(t0)
		if r < 0.7-1e-9 || r > 1.3+1e-9 {
			t.Fatalf("rate(%v) = %v outside [0.7, 1.3]", t0, r)
		}
		if math.Abs(r-1) > 1e-6 {
			varied = true
		}
	}
	if !varied {
		t.Error("rate never departs from the base rate")
	}
}

func TestArrivalsRespectCapacity(t *testing.T) {
	s := testSpec()
	s.Agents.SpawnRate = 10
	s.Agents.MaxAgents = 5
	g := New(s, nil, nil)

	if got := g.Arrivals(10, 5); len(got) != 0 {
		t.Errorf("%d arrivals into a full store", len(got))
	}
	if g.TurnedAway() == 0 {
		t.Error("turned-away arrivals not counted")
	}
	if got := g.Arrivals(20, 3); len(got) != 2 {
		t.Errorf("%d arrivals with 2 places free, want 2", len(got))
	}
}

func TestNoArrivalsWithoutRate(t *testing.T) {
	g := New(testSpec(), nil, nil)
	if got := g.Arrivals(1e6, 0); len(got) != 0 {
		t.Errorf("%d arrivals at rate 0", len(got))
	}
}
