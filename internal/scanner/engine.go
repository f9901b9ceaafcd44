package scanner

import (
	"context"
	"log"
	"time"

	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/camera"
)

// Engine runs the frame-processing loop on its own goroutine: raw frame ->
// external quad finder -> boundary validation -> stability tracking ->
// result publication. It is the single writer of the tracker state and of
// the session's latest-frame buffer.
type Engine struct {
	session     *camera.SessionManager
	finder      QuadFinder
	boundary    *BoundaryDetector
	tracker     *StabilityTracker
	streamer    *DetectionStreamer
	stats       *FrameStats
	logInterval time.Duration
}

// EngineConfig bundles the engine's collaborators.
type EngineConfig struct {
	Session     *camera.SessionManager
	Finder      QuadFinder
	Boundary    *BoundaryDetector
	Tracker     *StabilityTracker
	Streamer    *DetectionStreamer
	Stats       *FrameStats
	LogInterval time.Duration
}

// NewEngine creates a processing engine from its collaborators.
func NewEngine(config EngineConfig) *Engine {
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = 30 * time.Second
	}
	return &Engine{
		session:     config.Session,
		finder:      config.Finder,
		boundary:    config.Boundary,
		tracker:     config.Tracker,
		streamer:    config.Streamer,
		stats:       config.Stats,
		logInterval: logInterval,
	}
}

// Run consumes frames until the context is cancelled or the frame channel
// closes. Per-frame detector errors are logged and degraded to "no
// candidate"; they never terminate the loop or reach the consumer as
// failures.
func (e *Engine) Run(ctx context.Context) error {
	go e.startStatsLogging(ctx)

	frames := e.session.Frames()
	for {
		select {
		case <-ctx.Done():
			log.Println("Frame processing loop shutting down")
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			e.processFrame(ctx, frame)
		}
	}
}

// processFrame handles a single raw frame.
func (e *Engine) processFrame(ctx context.Context, frame camera.Frame) {
	if frame.Empty() {
		// Unreadable buffer: drop silently, keep the loop alive.
		return
	}

	e.stats.AddFrame(frame.UnixNanos)
	e.session.StoreLatestFrame(frame)

	candidates, err := e.finder.FindQuads(ctx, frame)
	if err != nil {
		// A failed detector call counts as a frame without a detection.
		log.Printf("Quad detection failed: %v", err)
		candidates = nil
	}

	candidate := e.boundary.Detect(candidates)
	if candidate != nil {
		e.stats.AddCandidate()
	} else if len(candidates) > 0 {
		e.stats.AddRejected()
	}

	result := e.tracker.Update(candidate, time.Unix(0, frame.UnixNanos))
	e.streamer.Publish(result)
}

// startStatsLogging logs processing statistics at regular intervals.
func (e *Engine) startStatsLogging(ctx context.Context) {
	ticker := time.NewTicker(e.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.stats.LogStats()
		}
	}
}
