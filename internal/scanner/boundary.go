// Package scanner turns noisy per-frame document boundary detections into a
// temporally stable overlay quad and an auto-capture decision. The processing
// engine owns the frame loop; results reach the consumer through a bounded
// stream and the capture coordinator runs the capture state machine.
package scanner

import (
	"context"
	"sync"

	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/camera"
)

// DetectionCandidate is one raw quadrilateral proposed by the vision
// capability for a single frame, with its confidence in [0,1]. Candidates
// are immutable and discarded after the stability tracker consumes them.
type DetectionCandidate struct {
	Quad       Quadrilateral `json:"quad"`
	Confidence float64       `json:"confidence"`
}

// QuadFinder is the external single-frame quadrilateral detection capability.
// It is treated as a pure, synchronous-per-call function with no shared
// state; a failed call is degraded to "no candidate" by the processing loop.
type QuadFinder interface {
	FindQuads(ctx context.Context, frame camera.Frame) ([]DetectionCandidate, error)
}

// BoundaryDetector validates raw detection candidates against confidence and
// geometry rules. It holds no per-frame state and is safe to call
// concurrently for independent frames; the tuning may be swapped between
// scans via SetConfig.
type BoundaryDetector struct {
	mu     sync.RWMutex
	config DetectionConfig
}

// NewBoundaryDetector creates a detector with the given tuning.
func NewBoundaryDetector(config DetectionConfig) *BoundaryDetector {
	return &BoundaryDetector{config: config}
}

// SetConfig replaces the validation tuning. Called between scans, never
// mid-frame.
func (d *BoundaryDetector) SetConfig(config DetectionConfig) {
	d.mu.Lock()
	d.config = config
	d.mu.Unlock()
}

// Accept reports whether a single candidate passes validation. Rejection
// reasons: confidence below the floor, near-full-frame area (background or
// table edges masquerading as a document), or a corner close enough to the
// frame boundary to risk clipping.
func (d *BoundaryDetector) Accept(c DetectionCandidate) bool {
	d.mu.RLock()
	config := d.config
	d.mu.RUnlock()

	if c.Confidence < config.MinConfidence {
		return false
	}
	if c.Quad.Area() > config.MaxAreaRatio {
		return false
	}
	if c.Quad.MinEdgeDistance() < config.MinEdgeMargin {
		return false
	}
	return true
}

// Detect selects the best acceptable candidate from a frame's raw
// detections, or nil when none survives validation. The highest-confidence
// acceptable candidate wins.
func (d *BoundaryDetector) Detect(candidates []DetectionCandidate) *DetectionCandidate {
	var best *DetectionCandidate
	for i := range candidates {
		c := candidates[i]
		if !d.Accept(c) {
			continue
		}
		if best == nil || c.Confidence > best.Confidence {
			best = &c
		}
	}
	return best
}
