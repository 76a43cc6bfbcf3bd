package routing

import (
	"math"

	"github.com/Mrozu888/crowd-pressure-simulation/pkg/geo"
)

// Cell addresses one grid square by column and row.
type Cell struct {
	C int `json:"c"`
	R int `json:"r"`
}

// GridMap is a walkability grid rasterized from static obstacles.
// It is immutable after construction.
type GridMap struct {
	origin   geo.Vec2
	cellSize float64
	cols     int
	rows     int
	blocked  []bool // row-major, true = occupied
}

// NewGridMap rasterizes obstacles over bounds. Each segment is inflated by
// buffer so that planned paths keep an agent's body clear of it; a cell is
// occupied when its center lies within buffer (plus half a cell diagonal) of
// any segment. Zero-length segments are skipped.
func NewGridMap(bounds geo.Rect, cellSize, buffer float64, obstacles []geo.Segment) *GridMap {
	cols := int(math.Ceil(bounds.Width() / cellSize))
	rows := int(math.Ceil(bounds.Height() / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	g := &GridMap{
		origin:   bounds.Min,
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		blocked:  make([]bool, cols*rows),
	}

	reach := buffer + cellSize*math.Sqrt2/2
	for _, seg := range obstacles {
		if seg.IsDegenerate() {
			continue
		}
		box := seg.Bounds().Expand(reach)
		minC, minR := g.rawCell(box.Min)
		maxC, maxR := g.rawCell(box.Max)
		minC, minR = max(minC, 0), max(minR, 0)
		maxC, maxR = min(maxC, cols-1), min(maxR, rows-1)

		for r := minR; r <= maxR; r++ {
			for c := minC; c <= maxC; c++ {
				if g.blocked[r*cols+c] {
					continue
				}
				if seg.DistanceTo(g.ToWorld(Cell{c, r})) <= reach {
					g.blocked[r*cols+c] = true
				}
			}
		}
	}
	return g
}

// Cols returns the grid width in cells.
func (g *GridMap) Cols() int { return g.cols }

// Rows returns the grid height in cells.
func (g *GridMap) Rows() int { return g.rows }

// CellSize returns the cell edge length in meters.
func (g *GridMap) CellSize() float64 { return g.cellSize }

func (g *GridMap) rawCell(p geo.Vec2) (int, int) {
	return int(math.Floor((p.X - g.origin.X) / g.cellSize)),
		int(math.Floor((p.Y - g.origin.Y) / g.cellSize))
}

// ToCell converts a world point to its cell, clamped to the grid.
func (g *GridMap) ToCell(p geo.Vec2) Cell {
	c, r := g.rawCell(p)
	return Cell{
		C: max(0, min(c, g.cols-1)),
		R: max(0, min(r, g.rows-1)),
	}
}

// ToWorld returns the center of a cell in world coordinates.
func (g *GridMap) ToWorld(c Cell) geo.Vec2 {
	return geo.Vec2{
		X: g.origin.X + (float64(c.C)+0.5)*g.cellSize,
		Y: g.origin.Y + (float64(c.R)+0.5)*g.cellSize,
	}
}

// InBounds reports whether the cell lies on the grid.
func (g *GridMap) InBounds(c Cell) bool {
	return c.C >= 0 && c.C < g.cols && c.R >= 0 && c.R < g.rows
}

// Walkable reports whether the cell is on the grid and unoccupied.
func (g *GridMap) Walkable(c Cell) bool {
	return g.InBounds(c) && !g.blocked[c.R*g.cols+c.C]
}

// WalkableAt reports whether the world point falls in a free cell.
// Points outside the grid are not walkable.
func (g *GridMap) WalkableAt(p geo.Vec2) bool {
	c, r := g.rawCell(p)
	return g.Walkable(Cell{c, r})
}

// BlockedCount returns the number of occupied cells.
func (g *GridMap) BlockedCount() int {
	n := 0
	for _, b := range g.blocked {
		if b {
			n++
		}
	}
	return n
}

// nearestWalkable searches square rings of growing radius around c and
// returns the first free cell, scanning each ring in a fixed order.
func (g *GridMap) nearestWalkable(c Cell, maxRadius int) (Cell, bool) {
	if g.Walkable(c) {
		return c, true
	}
	for r := 1; r <= maxRadius; r++ {
		for dc := -r; dc <= r; dc++ {
			for dr := -r; dr <= r; dr++ {
				if abs(dc) != r && abs(dr) != r {
					continue
				}
				n := Cell{c.C + dc, c.R + dr}
				if g.Walkable(n) {
					return n, true
				}
			}
		}
	}
	return Cell{}, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
