package routing

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
)

// Search failures. Callers treat all of them as "this target is unreachable"
// and decide their own fallback.
var (
	ErrNoWalkableCell = errors.New("no walkable cell within search radius")
	ErrBudgetExceeded = errors.New("search iteration budget exceeded")
	ErrUnreachable    = errors.New("target unreachable")
)

// Default search limits.
const (
	DefaultMaxIterations = 5000
	DefaultSearchRadius  = 10
)

// SearchOptions bounds the cost of a single search.
type SearchOptions struct {
	// MaxIterations caps node expansions; <= 0 uses DefaultMaxIterations.
	MaxIterations int
	// SearchRadius is how many rings around a blocked endpoint are scanned
	// for a free cell; <= 0 uses DefaultSearchRadius.
	SearchRadius int
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.SearchRadius <= 0 {
		o.SearchRadius = DefaultSearchRadius
	}
	return o
}

var neighborOffsets = [8]Cell{
	{0, 1}, {0, -1}, {1, 0}, {-1, 0},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// octile is the exact cost of an unobstructed 8-connected move between cells.
func octile(a, b Cell) float64 {
	dx := float64(abs(a.C - b.C))
	dy := float64(abs(a.R - b.R))
	return dx + dy + (math.Sqrt2-2)*math.Min(dx, dy)
}

// Search finds a shortest 8-connected route between two world points and
// returns the visited cells from start to end inclusive. A blocked start or
// end is first moved to the nearest free cell. Diagonal moves may not cut the
// corner of an occupied cell.
func (g *GridMap) Search(start, end geo.Vec2, opts SearchOptions) ([]Cell, error) {
	opts = opts.withDefaults()

	from, ok := g.nearestWalkable(g.ToCell(start), opts.SearchRadius)
	if !ok {
		return nil, fmt.Errorf("start %v: %w", start, ErrNoWalkableCell)
	}
	to, ok := g.nearestWalkable(g.ToCell(end), opts.SearchRadius)
	if !ok {
		return nil, fmt.Errorf("end %v: %w", end, ErrNoWalkableCell)
	}
	if from == to {
		return []Cell{from}, nil
	}

	idx := func(c Cell) int { return c.R*g.cols + c.C }
	n := g.cols * g.rows
	gScore := make([]float64, n)
	cameFrom := make([]int32, n)
	closed := make([]bool, n)
	for i := range gScore {
		gScore[i] = math.Inf(1)
		cameFrom[i] = -1
	}

	open := &openSet{}
	seq := 0
	gScore[idx(from)] = 0
	heap.Push(open, &openItem{cell: from, f: octile(from, to), h: octile(from, to), seq: seq})

	expansions := 0
	for open.Len() > 0 {
		cur := heap.Pop(open).(*openItem).cell
		ci := idx(cur)
		if closed[ci] {
			continue
		}
		expansions++
		if expansions > opts.MaxIterations {
			return nil, fmt.Errorf("%v -> %v after %d expansions: %w", start, end, opts.MaxIterations, ErrBudgetExceeded)
		}
		closed[ci] = true

		if cur == to {
			return g.reconstruct(cameFrom, ci), nil
		}

		for _, off := range neighborOffsets {
			nb := Cell{cur.C + off.C, cur.R + off.R}
			if !g.Walkable(nb) {
				continue
			}
			cost := 1.0
			if off.C != 0 && off.R != 0 {
				if !g.Walkable(Cell{cur.C + off.C, cur.R}) || !g.Walkable(Cell{cur.C, cur.R + off.R}) {
					continue
				}
				cost = math.Sqrt2
			}
			ni := idx(nb)
			if closed[ni] {
				continue
			}
			tentative := gScore[ci] + cost
			if tentative < gScore[ni] {
				gScore[ni] = tentative
				cameFrom[ni] = int32(ci)
				h := octile(nb, to)
				seq++
				heap.Push(open, &openItem{cell: nb, f: tentative + h, h: h, seq: seq})
			}
		}
	}

	return nil, fmt.Errorf("%v -> %v: %w", start, end, ErrUnreachable)
}

func (g *GridMap) reconstruct(cameFrom []int32, last int) []Cell {
	var cells []Cell
	for i := int32(last); i >= 0; i = cameFrom[i] {
		cells = append(cells, Cell{C: int(i) % g.cols, R: int(i) / g.cols})
	}
	for l, r := 0, len(cells)-1; l < r; l, r = l+1, r-1 {
		cells[l], cells[r] = cells[r], cells[l]
	}
	return cells
}

// PathLength returns the walked length of a cell path in meters.
func (g *GridMap) PathLength(cells []Cell) float64 {
	total := 0.0
	for i := 1; i < len(cells); i++ {
		total += g.ToWorld(cells[i-1]).Distance(g.ToWorld(cells[i]))
	}
	return total
}

type openItem struct {
	cell Cell
	f, h float64
	seq  int
}

// openSet is a min-heap on f, preferring lower h and then insertion order so
// results are reproducible.
type openSet []*openItem

func (o openSet) Len() int { return len(o) }
func (o openSet) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	if o[i].h != o[j].h {
		return o[i].h < o[j].h
	}
	return o[i].seq < o[j].seq
}
func (o openSet) Swap(i, j int)       { o[i], o[j] = o[j], o[i] }
func (o *openSet) Push(x interface{}) { *o = append(*o, x.(*openItem)) }
func (o *openSet) Pop() interface{} {
	old := *o
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*o = old[:n-1]
	return item
}
