package scanner

import "sync"

// DefaultStreamBuffer is the result buffer depth used when the caller does
// not choose one. At 30fps this holds about two seconds of results.
const DefaultStreamBuffer = 64

// StreamerStats receives drop notifications from the streamer.
type StreamerStats interface {
	AddDroppedResult()
}

// DetectionStreamer is the single-producer/single-consumer channel carrying
// FrameDetectionResult values from the frame-processing goroutine to the
// consumer. Delivery is fire-and-forget: the producer never blocks on the
// consumer. The buffer is bounded with a drop-oldest policy, so a stalled
// consumer loses the oldest results and always converges on recent ones.
//
// One streamer spans the whole scanning-session lifetime; it survives
// camera stop/start cycles and only closes when the session is torn down.
type DetectionStreamer struct {
	ch    chan FrameDetectionResult
	stats StreamerStats

	mu     sync.Mutex
	closed bool
}

// NewDetectionStreamer creates a streamer with the given buffer depth.
// Stats may be nil.
func NewDetectionStreamer(buffer int, stats StreamerStats) *DetectionStreamer {
	if buffer <= 0 {
		buffer = DefaultStreamBuffer
	}
	return &DetectionStreamer{
		ch:    make(chan FrameDetectionResult, buffer),
		stats: stats,
	}
}

// Publish enqueues a result without ever blocking the producer. When the
// buffer is full the oldest queued result is evicted and counted as dropped.
func (s *DetectionStreamer) Publish(r FrameDetectionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for {
		select {
		case s.ch <- r:
			return
		default:
		}
		// Buffer full: evict the oldest result and retry. The consumer may
		// race us for the receive, in which case the retry succeeds anyway.
		select {
		case <-s.ch:
			if s.stats != nil {
				s.stats.AddDroppedResult()
			}
		default:
		}
	}
}

// Results returns the receive side for consumer iteration. Results arrive in
// strict production order; the channel itself never reorders or coalesces.
// Consumers cancel by abandoning the channel (typically via a context in
// their own select loop); this stops delivery to them only, the producer
// keeps running while the camera session is active.
func (s *DetectionStreamer) Results() <-chan FrameDetectionResult {
	return s.ch
}

// Close ends the stream at scanning-session teardown. Publish calls after
// Close are no-ops.
func (s *DetectionStreamer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
