package scanner

import (
	"sync"
	"time"
)

// FrameDetectionResult is the per-frame output of the stability tracker.
// Emitted once per processed frame and consumed by a single stream
// subscriber.
type FrameDetectionResult struct {
	SmoothedQuad      *Quadrilateral `json:"smoothed_quad,omitempty"`
	Stability         float64        `json:"stability"`
	ShouldAutoCapture bool           `json:"should_auto_capture"`
}

// StabilityTracker turns noisy per-frame detection candidates into a
// temporally coherent stability measure and auto-capture decision.
//
// Stability is measured frame-to-frame: the reference quad tracks the most
// recent candidate rather than a fixed anchor, so slow sustained drift that
// stays within tolerance per step counts as stable even when the total
// displacement across many frames exceeds the tolerance.
//
// A single frame without a valid detection discards all accumulated
// stability. There is no tolerance for detection gaps; one frame of motion
// blur fully restarts the timer.
type StabilityTracker struct {
	config DetectionConfig

	mu                sync.Mutex
	reference         *Quadrilateral
	smoothed          *Quadrilateral
	stableSince       time.Time
	consecutiveStable int
}

// NewStabilityTracker creates a tracker. The configuration is validated
// here; an invalid configuration never reaches a running session.
func NewStabilityTracker(config DetectionConfig) (*StabilityTracker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &StabilityTracker{config: config}, nil
}

// Update processes one frame's candidate (nil when the frame had no valid
// detection) and returns the detection result for that frame. Called exactly
// once per frame by the frame-processing goroutine.
func (t *StabilityTracker) Update(candidate *DetectionCandidate, now time.Time) FrameDetectionResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if candidate == nil {
		t.resetLocked()
		return FrameDetectionResult{}
	}

	// EMA smoothing of the displayed corners. The first sighting is taken
	// as-is so the overlay never starts from a stale position.
	if t.smoothed == nil {
		q := candidate.Quad
		t.smoothed = &q
	} else {
		q := candidate.Quad.Smooth(*t.smoothed, t.config.SmoothingFactor)
		t.smoothed = &q
	}

	var stability float64
	var autoCapture bool

	if t.reference == nil {
		// First sighting: establish the reference, advance no counters.
	} else if candidate.Quad.WithinTolerance(*t.reference, t.config.PositionTolerance) {
		t.consecutiveStable++
		if t.consecutiveStable >= t.config.MinConsecutiveStableFrames && t.stableSince.IsZero() {
			t.stableSince = now
		}
		if !t.stableSince.IsZero() {
			elapsed := now.Sub(t.stableSince)
			stability = float64(elapsed) / float64(t.config.StabilityThreshold)
			if stability > 1 {
				stability = 1
			}
			autoCapture = elapsed >= t.config.StabilityThreshold
		}
	} else {
		t.stableSince = time.Time{}
		t.consecutiveStable = 0
	}

	// The reference tracks the most recent candidate in every branch.
	q := candidate.Quad
	t.reference = &q

	smoothed := *t.smoothed
	return FrameDetectionResult{
		SmoothedQuad:      &smoothed,
		Stability:         stability,
		ShouldAutoCapture: autoCapture,
	}
}

// Reconfigure swaps the tuning and clears all tracker state, so the new
// thresholds never apply to stability accumulated under the old ones. The
// configuration is validated before anything is touched.
func (t *StabilityTracker) Reconfigure(config DetectionConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.config = config
	t.resetLocked()
	return nil
}

// Reset clears all tracker state unconditionally. The next candidate behaves
// exactly as a first-ever sighting.
func (t *StabilityTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

func (t *StabilityTracker) resetLocked() {
	t.reference = nil
	t.smoothed = nil
	t.stableSince = time.Time{}
	t.consecutiveStable = 0
}

// ConsecutiveStableFrames returns the current stable-frame counter.
func (t *StabilityTracker) ConsecutiveStableFrames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consecutiveStable
}
