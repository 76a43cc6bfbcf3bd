// Package spatial provides uniform-grid indexes that limit force
// computations to nearby agents and walls.
package spatial

import (
	"math"
	"sort"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/agent"
	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
)

type cellKey [2]int

func keyOf(p geo.Vec2, size float64) cellKey {
	return cellKey{int(math.Floor(p.X / size)), int(math.Floor(p.Y / size))}
}

// AgentGrid buckets live agents by position. It is rebuilt every tick.
type AgentGrid struct {
	cellSize float64
	cells    map[cellKey][]*agent.Agent
	count    int
}

// NewAgentGrid creates an empty grid. cellSize should be at least the
// neighbor interaction range.
func NewAgentGrid(cellSize float64) *AgentGrid {
	return &AgentGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]*agent.Agent),
	}
}

// CellSize returns the bucket edge length in meters.
func (g *AgentGrid) CellSize() float64 { return g.cellSize }

// Len returns the number of indexed agents.
func (g *AgentGrid) Len() int { return g.count }

// Rebuild re-buckets the active, non-exited agents at their current
// positions. Within a cell agents keep roster order.
func (g *AgentGrid) Rebuild(agents []*agent.Agent) {
	for k, v := range g.cells {
		if len(v) == 0 {
			delete(g.cells, k)
			continue
		}
		g.cells[k] = v[:0]
	}
	g.count = 0
	for _, a := range agents {
		if !a.Active || a.Exited {
			continue
		}
		k := keyOf(a.Position, g.cellSize)
		g.cells[k] = append(g.cells[k], a)
		g.count++
	}
}

// Neighbors appends to dst every other indexed agent that is still active
// and within radius of a's current position, and returns the result.
// Only the cells overlapping the radius box are scanned. Results come in
// cell order (row by row) and then roster order.
func (g *AgentGrid) Neighbors(a *agent.Agent, radius float64, dst []*agent.Agent) []*agent.Agent {
	lo := keyOf(geo.V(a.Position.X-radius, a.Position.Y-radius), g.cellSize)
	hi := keyOf(geo.V(a.Position.X+radius, a.Position.Y+radius), g.cellSize)
	r2 := radius * radius

	for y := lo[1]; y <= hi[1]; y++ {
		for x := lo[0]; x <= hi[0]; x++ {
			for _, other := range g.cells[cellKey{x, y}] {
				if other == a || !other.Active || other.Exited {
					continue
				}
				if other.Position.Sub(a.Position).LengthSq() <= r2 {
					dst = append(dst, other)
				}
			}
		}
	}
	return dst
}

// CountIn returns the number of indexed agents whose position lies in r.
func (g *AgentGrid) CountIn(r geo.Rect) int {
	n := 0
	for _, bucket := range g.cells {
		for _, a := range bucket {
			if r.Contains(a.Position) {
				n++
			}
		}
	}
	return n
}

// WallGrid buckets static wall segments by the cells their bounding boxes
// cover. It is immutable after construction.
type WallGrid struct {
	cellSize float64
	segments []geo.Segment
	cells    map[cellKey][]int
}

// NewWallGrid indexes segments. Zero-length segments are dropped.
func NewWallGrid(segments []geo.Segment, cellSize float64) *WallGrid {
	w := &WallGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]int),
	}
	for _, s := range segments {
		if s.IsDegenerate() {
			continue
		}
		idx := len(w.segments)
		w.segments = append(w.segments, s)

		b := s.Bounds()
		lo, hi := keyOf(b.Min, cellSize), keyOf(b.Max, cellSize)
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				k := cellKey{x, y}
				w.cells[k] = append(w.cells[k], idx)
			}
		}
	}
	return w
}

// Segments returns the indexed segments in index order.
func (w *WallGrid) Segments() []geo.Segment { return w.segments }

// Nearby appends to dst each segment whose closest point lies within radius
// of p, once, in index order.
func (w *WallGrid) Nearby(p geo.Vec2, radius float64, dst []geo.Segment) []geo.Segment {
	lo := keyOf(geo.V(p.X-radius, p.Y-radius), w.cellSize)
	hi := keyOf(geo.V(p.X+radius, p.Y+radius), w.cellSize)

	var idx []int
	for y := lo[1]; y <= hi[1]; y++ {
		for x := lo[0]; x <= hi[0]; x++ {
			idx = append(idx, w.cells[cellKey{x, y}]...)
		}
	}
	sort.Ints(idx)

	prev := -1
	for _, i := range idx {
		if i == prev {
			continue
		}
		prev = i
		if w.segments[i].DistanceTo(p) <= radius {
			dst = append(dst, w.segments[i])
		}
	}
	return dst
}
