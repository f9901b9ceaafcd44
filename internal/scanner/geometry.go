package scanner

import "math"

// Point is a 2-D coordinate normalized to [0,1] in frame space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quadrilateral is a detected document boundary. Corner identity is fixed:
// TopLeft is always compared against TopLeft and so on, never re-matched by
// proximity across frames.
type Quadrilateral struct {
	TopLeft     Point `json:"top_left"`
	TopRight    Point `json:"top_right"`
	BottomLeft  Point `json:"bottom_left"`
	BottomRight Point `json:"bottom_right"`
}

// corners returns the corner points in the fixed winding order used for the
// shoelace computation: TL, TR, BR, BL.
func (q Quadrilateral) corners() [4]Point {
	return [4]Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// Area computes the quadrilateral area via the shoelace formula over the
// normalized corners. The result is a fraction of the frame area.
func (q Quadrilateral) Area() float64 {
	c := q.corners()
	var sum float64
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		sum += c[i].X*c[j].Y - c[j].X*c[i].Y
	}
	return math.Abs(sum) / 2
}

// WithinTolerance reports whether every corner of q lies within tol of the
// matching corner of other on both axes. A single corner exceeding the bound
// on either axis disqualifies the whole quadrilateral.
func (q Quadrilateral) WithinTolerance(other Quadrilateral, tol float64) bool {
	a := q.corners()
	b := other.corners()
	for i := 0; i < 4; i++ {
		if math.Abs(a[i].X-b[i].X) > tol || math.Abs(a[i].Y-b[i].Y) > tol {
			return false
		}
	}
	return true
}

// MinEdgeDistance returns the smallest distance from any corner to any frame
// edge. Coordinates outside [0,1] yield a negative distance.
func (q Quadrilateral) MinEdgeDistance() float64 {
	min := math.Inf(1)
	for _, p := range q.corners() {
		for _, d := range [4]float64{p.X, 1 - p.X, p.Y, 1 - p.Y} {
			if d < min {
				min = d
			}
		}
	}
	return min
}

// Smooth returns the per-coordinate exponential moving average
// alpha*q + (1-alpha)*prev.
func (q Quadrilateral) Smooth(prev Quadrilateral, alpha float64) Quadrilateral {
	mix := func(cur, old Point) Point {
		return Point{
			X: alpha*cur.X + (1-alpha)*old.X,
			Y: alpha*cur.Y + (1-alpha)*old.Y,
		}
	}
	return Quadrilateral{
		TopLeft:     mix(q.TopLeft, prev.TopLeft),
		TopRight:    mix(q.TopRight, prev.TopRight),
		BottomLeft:  mix(q.BottomLeft, prev.BottomLeft),
		BottomRight: mix(q.BottomRight, prev.BottomRight),
	}
}
