package scanner

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// MaxIntervalHistory bounds the number of inter-frame intervals kept for
// percentile computation.
const MaxIntervalHistory = 300

// FrameStats tracks frame-processing statistics with thread-safe operations.
type FrameStats struct {
	mu             sync.Mutex
	frameCount     int64
	candidateCount int64
	rejectedCount  int64
	droppedResults int64
	captureCount   int64
	lastFrameNanos int64
	intervals      []float64 // seconds between consecutive frames
	lastReset      time.Time
}

// FrameStatsSnapshot is a point-in-time copy of the counters for the API.
type FrameStatsSnapshot struct {
	Frames         int64   `json:"frames"`
	Candidates     int64   `json:"candidates"`
	Rejected       int64   `json:"rejected"`
	DroppedResults int64   `json:"dropped_results"`
	Captures       int64   `json:"captures"`
	IntervalP50    float64 `json:"interval_p50_secs"`
	IntervalP95    float64 `json:"interval_p95_secs"`
}

// NewFrameStats creates a new FrameStats instance.
func NewFrameStats() *FrameStats {
	return &FrameStats{
		lastReset: time.Now(),
		intervals: make([]float64, 0, MaxIntervalHistory),
	}
}

// AddFrame records one processed frame and its arrival time.
func (s *FrameStats) AddFrame(unixNanos int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameCount++
	if s.lastFrameNanos > 0 && unixNanos > s.lastFrameNanos {
		s.intervals = append(s.intervals, float64(unixNanos-s.lastFrameNanos)/1e9)
		if len(s.intervals) > MaxIntervalHistory {
			s.intervals = s.intervals[1:]
		}
	}
	s.lastFrameNanos = unixNanos
}

// AddCandidate records a frame that produced a valid detection candidate.
func (s *FrameStats) AddCandidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidateCount++
}

// AddRejected records a frame whose raw detections all failed validation.
func (s *FrameStats) AddRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectedCount++
}

// AddDroppedResult records a result evicted from the stream buffer.
func (s *FrameStats) AddDroppedResult() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.droppedResults++
}

// AddCapture records a completed still capture.
func (s *FrameStats) AddCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureCount++
}

// intervalQuantilesLocked computes interval percentiles over the retained
// history. Callers must hold the mutex.
func (s *FrameStats) intervalQuantilesLocked() (p50, p95 float64) {
	if len(s.intervals) == 0 {
		return 0, 0
	}
	sorted := make([]float64, len(s.intervals))
	copy(sorted, s.intervals)
	sort.Float64s(sorted)
	p50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	p95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return p50, p95
}

// Snapshot returns a copy of the current counters without resetting them.
func (s *FrameStats) Snapshot() FrameStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	p50, p95 := s.intervalQuantilesLocked()
	return FrameStatsSnapshot{
		Frames:         s.frameCount,
		Candidates:     s.candidateCount,
		Rejected:       s.rejectedCount,
		DroppedResults: s.droppedResults,
		Captures:       s.captureCount,
		IntervalP50:    p50,
		IntervalP95:    p95,
	}
}

// GetAndReset returns the windowed counters and resets them. The interval
// history is retained so percentiles stay meaningful across windows.
func (s *FrameStats) GetAndReset() (frames, candidates, rejected, dropped int64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	duration = now.Sub(s.lastReset)
	frames = s.frameCount
	candidates = s.candidateCount
	rejected = s.rejectedCount
	dropped = s.droppedResults

	s.frameCount = 0
	s.candidateCount = 0
	s.rejectedCount = 0
	s.droppedResults = 0
	s.lastReset = now

	return
}

// LogStats logs formatted statistics for the window since the last reset.
func (s *FrameStats) LogStats() {
	s.mu.Lock()
	p50, p95 := s.intervalQuantilesLocked()
	s.mu.Unlock()

	frames, candidates, rejected, dropped, duration := s.GetAndReset()
	if frames == 0 && dropped == 0 {
		return
	}

	framesPerSec := float64(frames) / duration.Seconds()
	logMsg := fmt.Sprintf("Scanner stats (/sec): %.1f frames, %d candidates, %d rejected", framesPerSec, candidates, rejected)
	if dropped > 0 {
		logMsg += fmt.Sprintf(", %d results dropped", dropped)
	}
	if p50 > 0 {
		logMsg += fmt.Sprintf(" (interval p50=%.0fms p95=%.0fms)", p50*1000, p95*1000)
	}
	log.Print(logMsg)
}
