package geo

// Segment is a wall, shelf edge or door line from A to B.
type Segment struct {
	A Vec2 `json:"a"`
	B Vec2 `json:"b"`
}

// Seg is a shorthand constructor for a segment from (x1,y1) to (x2,y2).
func Seg(x1, y1, x2, y2 float64) Segment {
	return Segment{A: Vec2{x1, y1}, B: Vec2{x2, y2}}
}

// Length returns the segment length.
func (s Segment) Length() float64 {
	return s.A.Distance(s.B)
}

// IsDegenerate reports whether the segment has (near) zero length.
func (s Segment) IsDegenerate() bool {
	return s.B.Sub(s.A).LengthSq() < 1e-18
}

// ClosestPoint projects p onto the segment, clamped to its end points.
func (s Segment) ClosestPoint(p Vec2) Vec2 {
	d := s.B.Sub(s.A)
	l2 := d.LengthSq()
	if l2 < 1e-18 {
		return s.A
	}
	t := clamp(p.Sub(s.A).Dot(d)/l2, 0, 1)
	return s.A.Add(d.Scale(t))
}

// DistanceTo returns the distance from p to the closest point on the segment.
func (s Segment) DistanceTo(p Vec2) float64 {
	return p.Distance(s.ClosestPoint(p))
}

// Bounds returns the axis-aligned bounding box of the segment.
func (s Segment) Bounds() Rect {
	return RectFromPoints(s.A, s.B)
}
