package routing

// LineOfSight reports whether every cell on the Bresenham line from a to b is
// walkable. Diagonal steps also require both side cells to be free, matching
// the no-corner-cutting rule of Search.
func (g *GridMap) LineOfSight(a, b Cell) bool {
	dx := abs(b.C - a.C)
	dy := -abs(b.R - a.R)
	sx, sy := 1, 1
	if a.C > b.C {
		sx = -1
	}
	if a.R > b.R {
		sy = -1
	}
	err := dx + dy
	c, r := a.C, a.R

	for {
		if !g.Walkable(Cell{c, r}) {
			return false
		}
		if c == b.C && r == b.R {
			return true
		}
		e2 := 2 * err
		stepC, stepR := false, false
		if e2 >= dy {
			err += dy
			stepC = true
		}
		if e2 <= dx {
			err += dx
			stepR = true
		}
		if stepC && stepR {
			if !g.Walkable(Cell{c + sx, r}) || !g.Walkable(Cell{c, r + sy}) {
				return false
			}
		}
		if stepC {
			c += sx
		}
		if stepR {
			r += sy
		}
	}
}

// Simplify collapses a dense cell path into its turning points: from each
// kept cell it jumps to the farthest later cell still in line of sight.
// The first and last cells are always kept.
func (g *GridMap) Simplify(cells []Cell) []Cell {
	if len(cells) <= 2 {
		return append([]Cell(nil), cells...)
	}

	out := []Cell{cells[0]}
	i := 0
	last := len(cells) - 1
	for i < last {
		next := i + 1
		for k := last; k > i+1; k-- {
			if g.LineOfSight(cells[i], cells[k]) {
				next = k
				break
			}
		}
		out = append(out, cells[next])
		i = next
	}
	return out
}
