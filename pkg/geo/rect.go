package geo

import "math"

// Rect is an axis-aligned rectangle with Min at the lower-left corner.
type Rect struct {
	Min Vec2 `json:"min"`
	Max Vec2 `json:"max"`
}

// RectFromPosSize builds a rectangle from its lower-left corner and size,
// the way cash registers are described in store layouts.
func RectFromPosSize(pos, size Vec2) Rect {
	return Rect{Min: pos, Max: pos.Add(size)}
}

// RectFromPoints returns the bounding box of two points.
func RectFromPoints(a, b Vec2) Rect {
	return Rect{
		Min: Vec2{math.Min(a.X, b.X), math.Min(a.Y, b.Y)},
		Max: Vec2{math.Max(a.X, b.X), math.Max(a.Y, b.Y)},
	}
}

// Width returns the extent along X.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the extent along Y.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Area returns the rectangle area.
func (r Rect) Area() float64 { return r.Width() * r.Height() }

// Center returns the rectangle center.
func (r Rect) Center() Vec2 {
	return Vec2{(r.Min.X + r.Max.X) / 2, (r.Min.Y + r.Max.Y) / 2}
}

// Expand returns the rectangle grown by margin on every side.
func (r Rect) Expand(margin float64) Rect {
	return Rect{
		Min: Vec2{r.Min.X - margin, r.Min.Y - margin},
		Max: Vec2{r.Max.X + margin, r.Max.Y + margin},
	}
}

// Contains reports whether p lies inside or on the boundary.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// ClosestPoint clamps p onto the rectangle.
func (r Rect) ClosestPoint(p Vec2) Vec2 {
	return Vec2{clamp(p.X, r.Min.X, r.Max.X), clamp(p.Y, r.Min.Y, r.Max.Y)}
}

// Edges returns the four boundary segments, counterclockwise from Min.
func (r Rect) Edges() []Segment {
	a := r.Min
	b := Vec2{r.Max.X, r.Min.Y}
	c := r.Max
	d := Vec2{r.Min.X, r.Max.Y}
	return []Segment{{a, b}, {b, c}, {c, d}, {d, a}}
}
