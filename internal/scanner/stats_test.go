package scanner

import (
	"math"
	"testing"
	"time"
)

func TestFrameStatsCounters(t *testing.T) {
	s := NewFrameStats()

	base := time.Now().UnixNano()
	for i := 0; i < 5; i++ {
		s.AddFrame(base + int64(i)*33e6)
	}
	s.AddCandidate()
	s.AddCandidate()
	s.AddRejected()
	s.AddDroppedResult()
	s.AddCapture()

	snap := s.Snapshot()
	if snap.Frames != 5 {
		t.Errorf("Frames = %d, want 5", snap.Frames)
	}
	if snap.Candidates != 2 {
		t.Errorf("Candidates = %d, want 2", snap.Candidates)
	}
	if snap.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", snap.Rejected)
	}
	if snap.DroppedResults != 1 {
		t.Errorf("DroppedResults = %d, want 1", snap.DroppedResults)
	}
	if snap.Captures != 1 {
		t.Errorf("Captures = %d, want 1", snap.Captures)
	}
}

func TestFrameStatsIntervalPercentiles(t *testing.T) {
	s := NewFrameStats()

	// 10 frames at a steady 33ms cadence: both percentiles land on 33ms.
	ts := int64(1e9)
	for i := 0; i < 10; i++ {
		s.AddFrame(ts)
		ts += 33e6
	}

	snap := s.Snapshot()
	if math.Abs(snap.IntervalP50-0.033) > 1e-9 {
		t.Errorf("IntervalP50 = %v, want 0.033", snap.IntervalP50)
	}
	if math.Abs(snap.IntervalP95-0.033) > 1e-9 {
		t.Errorf("IntervalP95 = %v, want 0.033", snap.IntervalP95)
	}
}

func TestFrameStatsIntervalIgnoresOutOfOrderTimestamps(t *testing.T) {
	s := NewFrameStats()

	s.AddFrame(2e9)
	s.AddFrame(1e9) // regressed clock, no interval recorded
	s.AddFrame(1e9) // duplicate timestamp, no interval recorded

	snap := s.Snapshot()
	if snap.Frames != 3 {
		t.Errorf("Frames = %d, want 3", snap.Frames)
	}
	if snap.IntervalP50 != 0 {
		t.Errorf("IntervalP50 = %v, want 0 with no valid intervals", snap.IntervalP50)
	}
}

func TestFrameStatsIntervalHistoryBounded(t *testing.T) {
	s := NewFrameStats()

	ts := int64(1e9)
	for i := 0; i < MaxIntervalHistory+50; i++ {
		s.AddFrame(ts)
		ts += 10e6
	}

	s.mu.Lock()
	n := len(s.intervals)
	s.mu.Unlock()
	if n != MaxIntervalHistory {
		t.Errorf("interval history length = %d, want %d", n, MaxIntervalHistory)
	}
}

func TestFrameStatsGetAndReset(t *testing.T) {
	s := NewFrameStats()

	base := time.Now().UnixNano()
	s.AddFrame(base)
	s.AddFrame(base + 33e6)
	s.AddCandidate()
	s.AddDroppedResult()

	frames, candidates, rejected, dropped, duration := s.GetAndReset()
	if frames != 2 || candidates != 1 || rejected != 0 || dropped != 1 {
		t.Errorf("GetAndReset = (%d, %d, %d, %d), want (2, 1, 0, 1)", frames, candidates, rejected, dropped)
	}
	if duration <= 0 {
		t.Errorf("duration = %v, want > 0", duration)
	}

	frames, candidates, _, dropped, _ = s.GetAndReset()
	if frames != 0 || candidates != 0 || dropped != 0 {
		t.Errorf("counters not reset: frames=%d candidates=%d dropped=%d", frames, candidates, dropped)
	}

	// Interval history survives the reset so percentiles stay populated.
	if snap := s.Snapshot(); snap.IntervalP50 == 0 {
		t.Error("interval percentiles should survive GetAndReset")
	}
}
