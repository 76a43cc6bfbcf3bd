package spatial

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/agent"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
)

func agentAt(id int, x, y float64) *agent.Agent {
	return agent.New(id, []agent.PathNode{{Pos: geo.V(x, y)}}, 0)
}

func randomCrowd(rng *rand.Rand, n int, w, h float64) []*agent.Agent {
	agents := make([]*agent.Agent, n)
	for i := range agents {
		agents[i] = agentAt(i, rng.Float64()*w, rng.Float64()*h)
	}
	return agents
}

func bruteNeighbors(agents []*agent.Agent, a *agent.Agent, radius float64) []int {
	var ids []int
	for _, o := range agents {
		if o == a || !o.Active || o.Exited {
			continue
		}
		if o.Position.Distance(a.Position) <= radius {
			ids = append(ids, o.ID)
		}
	}
	sort.Ints(ids)
	return ids
}

func ids(agents []*agent.Agent) []int {
	out := make([]int, len(agents))
	for i, a := range agents {
		out[i] = a.ID
	}
	return out
}

func TestNeighborsMatchBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	agents := randomCrowd(rng, 300, 20, 15)
	agents[5].Active = false
	agents[9].MarkExited()

	tests := []struct {
		cellSize, radius float64
	}{
		{2.0, 2.0},
		{2.0, 1.0},
		{0.5, 2.0},
		{5.0, 0.3},
	}
	for _, tt := range tests {
		g := NewAgentGrid(tt.cellSize)
		g.Rebuild(agents)
		if g.Len() != 298 {
			t.Fatalf("indexed %d agents, want 298", g.Len())
		}
		for _, a := range agents[:50] {
			got := ids(g.Neighbors(a, tt.radius, nil))
			sort.Ints(got)
			want := bruteNeighbors(agents, a, tt.radius)
			if len(got) != len(want) {
				t.Fatalf("cell %.1f radius %.1f agent %d: %d neighbors, want %d",
					tt.cellSize, tt.radius, a.ID, len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("agent %d: neighbors %v, want %v", a.ID, got, want)
				}
			}
		}
	}
}

func TestNeighborsExcludeSelfAndInactive(t *testing.T) {
	a := agentAt(1, 1, 1)
	b := agentAt(2, 1.5, 1)
	c := agentAt(3, 1.2, 1.1)
	d := agentAt(4, 0.8, 1)
	g := NewAgentGrid(1)
	g.Rebuild([]*agent.Agent{a, b, c, d})

	// Deactivated after the rebuild: still bucketed, must still be skipped.
	c.MarkExited()

	got := ids(g.Neighbors(a, 1, nil))
	if len(got) != 2 {
		t.Fatalf("neighbors = %v, want [2 4] in some order", got)
	}
	for _, id := range got {
		if id == 1 || id == 3 {
			t.Errorf("unexpected neighbor %d", id)
		}
	}
}

func TestNeighborsDeterministicOrder(t *testing.T) {
	// Two agents in the same cell keep roster order; a lower-row cell comes
	// first.
	q := agentAt(0, 5, 5)
	a := agentAt(1, 5.2, 5.6)
	b := agentAt(2, 5.1, 5.4)
	c := agentAt(3, 5.3, 4.2)
	g := NewAgentGrid(1)
	g.Rebuild([]*agent.Agent{q, a, b, c})

	got := ids(g.Neighbors(q, 1.5, nil))
	want := []int{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("neighbors = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("neighbors = %v, want %v", got, want)
			break
		}
	}
}

func TestNeighborsSeeLivePositions(t *testing.T) {
	a := agentAt(1, 0.5, 0.5)
	b := agentAt(2, 0.9, 0.5)
	g := NewAgentGrid(2)
	g.Rebuild([]*agent.Agent{a, b})

	b.Position = geo.V(1.9, 0.5)
	if got := g.Neighbors(a, 1, nil); len(got) != 0 {
		t.Errorf("moved agent still reported: %v", ids(got))
	}
}

func TestRebuildDropsStaleBuckets(t *testing.T) {
	a := agentAt(1, 0.5, 0.5)
	g := NewAgentGrid(1)
	g.Rebuild([]*agent.Agent{a})
	a.Position = geo.V(10.5, 10.5)
	g.Rebuild([]*agent.Agent{a})

	probe := agentAt(9, 0.5, 0.5)
	if got := g.Neighbors(probe, 0.5, nil); len(got) != 0 {
		t.Errorf("stale bucket still holds %v", ids(got))
	}
	if g.CountIn(geo.Rect{Min: geo.V(10, 10), Max: geo.V(11, 11)}) != 1 {
		t.Error("agent missing from its new cell")
	}
}

func TestWallNearbyDedupesAndOrders(t *testing.T) {
	segs := []geo.Segment{
		geo.Seg(0, 0, 20, 0), // spans many cells
		geo.Seg(5, 5, 5, 5),  // degenerate, dropped
		geo.Seg(2, 1, 2, 3),
		geo.Seg(15, 10, 18, 10),
	}
	w := NewWallGrid(segs, 1)
	if len(w.Segments()) != 3 {
		t.Fatalf("indexed %d segments, want 3", len(w.Segments()))
	}

	got := w.Nearby(geo.V(2.5, 0.8), 1.5, nil)
	if len(got) != 2 {
		t.Fatalf("nearby = %v, want 2 segments", got)
	}
	if got[0] != segs[0] || got[1] != segs[2] {
		t.Errorf("nearby = %v, want index order", got)
	}

	if got := w.Nearby(geo.V(10, 5), 1, nil); len(got) != 0 {
		t.Errorf("nothing should be near the middle, got %v", got)
	}
}

func TestWallNearbyMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var segs []geo.Segment
	for i := 0; i < 80; i++ {
		x, y := rng.Float64()*20, rng.Float64()*15
		segs = append(segs, geo.Seg(x, y, x+rng.Float64()*4-2, y+rng.Float64()*4-2))
	}
	w := NewWallGrid(segs, 1)

	for i := 0; i < 200; i++ {
		p := geo.V(rng.Float64()*20, rng.Float64()*15)
		got := w.Nearby(p, 1, nil)
		want := 0
		for _, s := range w.Segments() {
			if s.DistanceTo(p) <= 1 {
				want++
			}
		}
		if len(got) != want {
			t.Fatalf("point %v: %d nearby, want %d", p, len(got), want)
		}
	}
}

func BenchmarkNeighbors(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	agents := randomCrowd(rng, 1000, 40, 30)
	g := NewAgentGrid(2)
	g.Rebuild(agents)
	var buf []*agent.Agent

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf = g.Neighbors(agents[i%len(agents)], 2, buf[:0])
	}
}

func BenchmarkRebuild(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	agents := randomCrowd(rng, 1000, 40, 30)
	g := NewAgentGrid(2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Rebuild(agents)
	}
}
