package scanner

import (
	"math"
	"testing"
	"time"
)

func testStabilityConfig() DetectionConfig {
	return DetectionConfig{
		StabilityThreshold:         time.Second,
		PositionTolerance:          0.05,
		MinConsecutiveStableFrames: 3,
		MaxAreaRatio:               0.95,
		MinEdgeMargin:              0.01,
		MinConfidence:              0.5,
		SmoothingFactor:            0.5,
	}
}

func mustTracker(t *testing.T, cfg DetectionConfig) *StabilityTracker {
	t.Helper()
	tracker, err := NewStabilityTracker(cfg)
	if err != nil {
		t.Fatalf("NewStabilityTracker: %v", err)
	}
	return tracker
}

func steadyCandidate() *DetectionCandidate {
	return &DetectionCandidate{Quad: CenteredQuad(0.3), Confidence: 0.9}
}

func TestNewStabilityTrackerRejectsBadConfig(t *testing.T) {
	cfg := testStabilityConfig()
	cfg.StabilityThreshold = 0
	if _, err := NewStabilityTracker(cfg); err == nil {
		t.Error("expected error for non-positive stability threshold")
	}

	cfg = testStabilityConfig()
	cfg.SmoothingFactor = 1.5
	if _, err := NewStabilityTracker(cfg); err == nil {
		t.Error("expected error for smoothing factor > 1")
	}

	cfg = testStabilityConfig()
	cfg.MinConsecutiveStableFrames = 0
	if _, err := NewStabilityTracker(cfg); err == nil {
		t.Error("expected error for zero min consecutive stable frames")
	}
}

func TestUpdateNoCandidateReturnsEmptyResult(t *testing.T) {
	tracker := mustTracker(t, testStabilityConfig())

	result := tracker.Update(nil, time.Now())
	if result.SmoothedQuad != nil {
		t.Error("expected no smoothed quad")
	}
	if result.Stability != 0 {
		t.Errorf("expected stability 0, got %v", result.Stability)
	}
	if result.ShouldAutoCapture {
		t.Error("expected no auto capture")
	}
}

func TestFirstSightingInitializesWithoutCounting(t *testing.T) {
	tracker := mustTracker(t, testStabilityConfig())
	now := time.Now()

	result := tracker.Update(steadyCandidate(), now)
	if result.SmoothedQuad == nil {
		t.Fatal("expected smoothed quad on first sighting")
	}
	// No smoothing on first sighting: the quad is taken exactly as-is.
	if *result.SmoothedQuad != steadyCandidate().Quad {
		t.Error("first sighting should not be smoothed")
	}
	if result.Stability != 0 {
		t.Errorf("expected stability 0 on first sighting, got %v", result.Stability)
	}
	if tracker.ConsecutiveStableFrames() != 0 {
		t.Errorf("first sighting must not advance counters, got %d", tracker.ConsecutiveStableFrames())
	}
}

func TestStabilityMonotonicAndClamped(t *testing.T) {
	tracker := mustTracker(t, testStabilityConfig())
	start := time.Unix(1000, 0)

	// Feed a constant candidate at 100ms intervals for 3 seconds.
	var prev float64
	var sawClamp bool
	for i := 0; i < 30; i++ {
		now := start.Add(time.Duration(i) * 100 * time.Millisecond)
		result := tracker.Update(steadyCandidate(), now)

		if result.Stability < prev {
			t.Fatalf("stability decreased from %v to %v at frame %d", prev, result.Stability, i)
		}
		if result.Stability > 1.0 {
			t.Fatalf("stability exceeded 1.0: %v", result.Stability)
		}
		if result.Stability == 1.0 {
			sawClamp = true
		}
		prev = result.Stability
	}
	if !sawClamp {
		t.Error("stability never clamped at 1.0 over 3 seconds")
	}
}

func TestAutoCaptureTimingScenario(t *testing.T) {
	// Config from the reference scenario: threshold 1.0s, tolerance 0.05,
	// 3 consecutive frames, alpha 0.5, identical candidate every 0.3s.
	tracker := mustTracker(t, testStabilityConfig())
	start := time.Unix(1000, 0)

	var timerStartFrame int
	var captureFrame int
	for i := 0; i < 10; i++ {
		now := start.Add(time.Duration(i) * 300 * time.Millisecond)
		result := tracker.Update(steadyCandidate(), now)

		if result.Stability > 0 && timerStartFrame == 0 {
			timerStartFrame = i
		}
		if result.ShouldAutoCapture && captureFrame == 0 {
			captureFrame = i
			break
		}
	}

	// Frame 0 is the first sighting; frames 1..3 are stable comparisons, so
	// the counter reaches 3 at frame 3 (t=0.9s) and the timer starts there.
	// Stability first becomes >0 one frame later.
	if timerStartFrame != 4 {
		t.Errorf("expected first non-zero stability at frame 4, got %d", timerStartFrame)
	}
	// The threshold elapses 1.0s after t=0.9s, first observed at t=2.1s
	// (frame 7).
	if captureFrame != 7 {
		t.Errorf("expected auto capture at frame 7, got %d", captureFrame)
	}
}

func TestAutoCaptureExactlyAtThreshold(t *testing.T) {
	cfg := testStabilityConfig()
	cfg.MinConsecutiveStableFrames = 1
	tracker := mustTracker(t, cfg)
	start := time.Unix(1000, 0)

	tracker.Update(steadyCandidate(), start)                      // first sighting
	tracker.Update(steadyCandidate(), start.Add(100*time.Millisecond)) // timer starts here

	// Exactly threshold seconds after the timer started.
	result := tracker.Update(steadyCandidate(), start.Add(1100*time.Millisecond))
	if !result.ShouldAutoCapture {
		t.Error("expected auto capture exactly at threshold")
	}
	if result.Stability != 1.0 {
		t.Errorf("expected stability 1.0 at threshold, got %v", result.Stability)
	}

	// Just before the threshold it must not fire.
	tracker.Reset()
	tracker.Update(steadyCandidate(), start)
	tracker.Update(steadyCandidate(), start.Add(100*time.Millisecond))
	result = tracker.Update(steadyCandidate(), start.Add(1099*time.Millisecond))
	if result.ShouldAutoCapture {
		t.Error("auto capture fired before threshold elapsed")
	}
}

func TestSingleGapDiscardsAllStability(t *testing.T) {
	tracker := mustTracker(t, testStabilityConfig())
	start := time.Unix(1000, 0)

	for i := 0; i < 10; i++ {
		tracker.Update(steadyCandidate(), start.Add(time.Duration(i)*300*time.Millisecond))
	}

	// One frame of motion blur: everything resets, no tolerance for gaps.
	result := tracker.Update(nil, start.Add(3*time.Second))
	if result.Stability != 0 {
		t.Errorf("expected stability 0 after gap, got %v", result.Stability)
	}
	if result.SmoothedQuad != nil {
		t.Error("expected smoothed quad cleared after gap")
	}
	if tracker.ConsecutiveStableFrames() != 0 {
		t.Error("expected counters cleared after gap")
	}

	// The next candidate behaves as a first-ever sighting.
	result = tracker.Update(steadyCandidate(), start.Add(3300*time.Millisecond))
	if result.Stability != 0 {
		t.Errorf("expected stability 0 on re-sighting, got %v", result.Stability)
	}
	if *result.SmoothedQuad != steadyCandidate().Quad {
		t.Error("re-sighting should carry no residual smoothing")
	}
}

func TestMovedCandidateResetsCounters(t *testing.T) {
	tracker := mustTracker(t, testStabilityConfig())
	start := time.Unix(1000, 0)

	a := steadyCandidate()
	tracker.Update(a, start)
	tracker.Update(a, start.Add(300*time.Millisecond))

	// Candidate shifted by 0.2, well over the 0.05 tolerance.
	b := &DetectionCandidate{Quad: ShiftQuad(a.Quad, 0.2, 0), Confidence: 0.9}
	result := tracker.Update(b, start.Add(600*time.Millisecond))

	if result.Stability != 0 {
		t.Errorf("expected stability 0 after move, got %v", result.Stability)
	}
	if tracker.ConsecutiveStableFrames() != 0 {
		t.Error("expected counter reset after move")
	}

	// The reference is now B: holding B builds stability again.
	next := tracker.Update(b, start.Add(900*time.Millisecond))
	if next.ShouldAutoCapture {
		t.Error("auto capture should not fire immediately after move")
	}
	if tracker.ConsecutiveStableFrames() != 1 {
		t.Errorf("expected counter 1 holding at new position, got %d", tracker.ConsecutiveStableFrames())
	}
}

func TestSlowDriftWithinToleranceStaysStable(t *testing.T) {
	// The reference quad tracks the most recent candidate, so a drift of
	// 0.02 per frame under a 0.05 tolerance counts as stable even after the
	// total displacement exceeds the tolerance many times over.
	tracker := mustTracker(t, testStabilityConfig())
	start := time.Unix(1000, 0)

	quad := CenteredQuad(0.2)
	var last FrameDetectionResult
	for i := 0; i < 15; i++ {
		c := &DetectionCandidate{Quad: ShiftQuad(quad, float64(i)*0.02, 0), Confidence: 0.9}
		last = tracker.Update(c, start.Add(time.Duration(i)*200*time.Millisecond))
	}

	// Total displacement is 0.28, over 5x the tolerance, yet per-step deltas
	// never exceeded it.
	if !last.ShouldAutoCapture {
		t.Error("slow drift within per-step tolerance should reach auto capture")
	}
	if last.Stability != 1.0 {
		t.Errorf("expected stability 1.0 under slow drift, got %v", last.Stability)
	}
}

func TestEMASmoothingConvergence(t *testing.T) {
	cfg := testStabilityConfig()
	cfg.SmoothingFactor = 0.5
	tracker := mustTracker(t, cfg)
	start := time.Unix(1000, 0)

	// Establish a smoothed position at quad A.
	a := steadyCandidate()
	tracker.Update(a, start)

	// Jump to quad B: the smoothed corners converge monotonically toward B.
	b := &DetectionCandidate{Quad: ShiftQuad(a.Quad, 0.2, 0.1), Confidence: 0.9}
	prevDist := math.Inf(1)
	for i := 1; i <= 8; i++ {
		result := tracker.Update(b, start.Add(time.Duration(i)*100*time.Millisecond))
		if result.SmoothedQuad == nil {
			t.Fatal("expected smoothed quad")
		}
		dist := math.Abs(result.SmoothedQuad.TopLeft.X - b.Quad.TopLeft.X)
		if dist >= prevDist {
			t.Fatalf("smoothed corner did not converge at step %d: %v >= %v", i, dist, prevDist)
		}
		prevDist = dist
	}
	if prevDist > 0.002 {
		t.Errorf("smoothed corner still %v away from target after 8 frames", prevDist)
	}
}

func TestConstantQuadSmoothedExactly(t *testing.T) {
	tracker := mustTracker(t, testStabilityConfig())
	start := time.Unix(1000, 0)

	c := steadyCandidate()
	for i := 0; i < 5; i++ {
		result := tracker.Update(c, start.Add(time.Duration(i)*100*time.Millisecond))
		if *result.SmoothedQuad != c.Quad {
			t.Fatalf("constant quad should stay exact at frame %d, got %+v", i, *result.SmoothedQuad)
		}
	}
}

func TestResetMidStability(t *testing.T) {
	tracker := mustTracker(t, testStabilityConfig())
	start := time.Unix(1000, 0)

	for i := 0; i < 8; i++ {
		tracker.Update(steadyCandidate(), start.Add(time.Duration(i)*300*time.Millisecond))
	}

	tracker.Reset()

	if tracker.ConsecutiveStableFrames() != 0 {
		t.Error("expected counters cleared by Reset")
	}

	// Next candidate is a first-ever sighting.
	result := tracker.Update(steadyCandidate(), start.Add(10*time.Second))
	if result.Stability != 0 {
		t.Errorf("expected stability 0 after reset, got %v", result.Stability)
	}
	if *result.SmoothedQuad != steadyCandidate().Quad {
		t.Error("expected unsmoothed first sighting after reset")
	}
	if tracker.ConsecutiveStableFrames() != 0 {
		t.Error("first sighting after reset must not advance counters")
	}
}

func TestReconfigureSwapsTuningAndClearsState(t *testing.T) {
	tracker := mustTracker(t, testStabilityConfig())

	start := time.Unix(100, 0)
	for i := 0; i < 5; i++ {
		tracker.Update(steadyCandidate(), start.Add(time.Duration(i)*300*time.Millisecond))
	}
	if tracker.ConsecutiveStableFrames() == 0 {
		t.Fatal("expected accumulated stable frames before reconfigure")
	}

	loose := testStabilityConfig()
	loose.PositionTolerance = 0.3
	if err := tracker.Reconfigure(loose); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}

	if tracker.ConsecutiveStableFrames() != 0 {
		t.Error("expected counters cleared by Reconfigure")
	}

	// Next candidate is a first-ever sighting under the new tuning.
	result := tracker.Update(steadyCandidate(), start.Add(10*time.Second))
	if result.Stability != 0 {
		t.Errorf("expected stability 0 after reconfigure, got %v", result.Stability)
	}

	// The new tolerance is in force: a 0.2 shift stays within 0.3.
	shifted := &DetectionCandidate{Quad: ShiftQuad(steadyCandidate().Quad, 0.2, 0), Confidence: 0.9}
	tracker.Update(shifted, start.Add(10*time.Second+300*time.Millisecond))
	if got := tracker.ConsecutiveStableFrames(); got != 1 {
		t.Errorf("stable frames = %d, want 1 under the widened tolerance", got)
	}
}

func TestReconfigureRejectsInvalidConfig(t *testing.T) {
	tracker := mustTracker(t, testStabilityConfig())
	tracker.Update(steadyCandidate(), time.Unix(100, 0))

	bad := testStabilityConfig()
	bad.SmoothingFactor = 2.0
	if err := tracker.Reconfigure(bad); err == nil {
		t.Fatal("expected error for invalid config")
	}

	// A rejected reconfigure leaves the tracker untouched: the reference from
	// the prior frame still stands.
	tracker.Update(steadyCandidate(), time.Unix(100, 0).Add(300*time.Millisecond))
	if got := tracker.ConsecutiveStableFrames(); got != 1 {
		t.Errorf("stable frames = %d, want 1 after rejected reconfigure", got)
	}
}
