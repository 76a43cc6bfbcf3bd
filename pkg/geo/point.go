package geo

import "math"

// Vec2 is a point or vector in the store plane, in meters.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// V is a shorthand constructor for Vec2.
func V(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

// Add returns p + q.
func (p Vec2) Add(q Vec2) Vec2 {
	return Vec2{p.X + q.X, p.Y + q.Y}
}

// Sub returns p - q.
func (p Vec2) Sub(q Vec2) Vec2 {
	return Vec2{p.X - q.X, p.Y - q.Y}
}

// Scale returns p * s.
func (p Vec2) Scale(s float64) Vec2 {
	return Vec2{p.X * s, p.Y * s}
}

// Neg returns -p.
func (p Vec2) Neg() Vec2 {
	return Vec2{-p.X, -p.Y}
}

// Length returns the Euclidean length of the vector.
func (p Vec2) Length() float64 {
	return math.Hypot(p.X, p.Y)
}

// LengthSq returns the squared length, avoiding the square root.
func (p Vec2) LengthSq() float64 {
	return p.X*p.X + p.Y*p.Y
}

// Normalize returns the unit vector in the same direction.
// Returns zero vector if length is zero.
func (p Vec2) Normalize() Vec2 {
	l := p.Length()
	if l < 1e-12 {
		return Vec2{}
	}
	return Vec2{p.X / l, p.Y / l}
}

// Dot returns the dot product of p and q.
func (p Vec2) Dot(q Vec2) float64 {
	return p.X*q.X + p.Y*q.Y
}

// Distance returns the Euclidean distance from p to q.
func (p Vec2) Distance(q Vec2) float64 {
	return p.Sub(q).Length()
}

// Perp returns a vector perpendicular to p (rotated 90 degrees counterclockwise).
func (p Vec2) Perp() Vec2 {
	return Vec2{-p.Y, p.X}
}

// IsZero reports whether both components are exactly zero.
func (p Vec2) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

// Lerp returns the linear interpolation between p and q at t in [0,1].
func (p Vec2) Lerp(q Vec2, t float64) Vec2 {
	return Vec2{
		X: p.X + (q.X-p.X)*t,
		Y: p.Y + (q.Y-p.Y)*t,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
