package scanner

import (
	"context"
	"sync"

	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/camera"
)

// MockQuadFinder implements QuadFinder for testing and dev mode. Each call
// consumes the next entry of Script; when the script is exhausted the finder
// keeps returning Repeat (which may be nil for "no detection").
type MockQuadFinder struct {
	Script    [][]DetectionCandidate
	Repeat    []DetectionCandidate
	FindError error

	mu    sync.Mutex
	calls int
}

func (f *MockQuadFinder) FindQuads(ctx context.Context, frame camera.Frame) ([]DetectionCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.FindError != nil {
		return nil, f.FindError
	}
	if f.calls <= len(f.Script) {
		return f.Script[f.calls-1], nil
	}
	return f.Repeat, nil
}

// Calls returns how many times FindQuads was invoked.
func (f *MockQuadFinder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// CenteredQuad returns a quadrilateral of the given half-extent around the
// frame centre, handy for building test scripts.
func CenteredQuad(half float64) Quadrilateral {
	return Quadrilateral{
		TopLeft:     Point{X: 0.5 - half, Y: 0.5 - half},
		TopRight:    Point{X: 0.5 + half, Y: 0.5 - half},
		BottomLeft:  Point{X: 0.5 - half, Y: 0.5 + half},
		BottomRight: Point{X: 0.5 + half, Y: 0.5 + half},
	}
}

// ShiftQuad translates every corner of q by (dx, dy).
func ShiftQuad(q Quadrilateral, dx, dy float64) Quadrilateral {
	shift := func(p Point) Point { return Point{X: p.X + dx, Y: p.Y + dy} }
	return Quadrilateral{
		TopLeft:     shift(q.TopLeft),
		TopRight:    shift(q.TopRight),
		BottomLeft:  shift(q.BottomLeft),
		BottomRight: shift(q.BottomRight),
	}
}
