package scanner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/camera"
)

// State is the capture coordinator lifecycle state.
type State string

const (
	StateIdle      State = "idle"      // No detection results yet
	StateDetecting State = "detecting" // Receiving results, stability accumulating
	StateCapturing State = "capturing" // Still capture in flight or awaiting review
	StateError     State = "error"     // Capture-path failure, pending timed recovery
)

// ErrorRevertDelay is how long an error message stays visible before the
// coordinator reverts to Detecting or Idle on its own.
const ErrorRevertDelay = 2 * time.Second

// TriggerKind distinguishes how a capture was initiated.
type TriggerKind string

const (
	TriggerManual TriggerKind = "manual"
	TriggerAuto   TriggerKind = "auto"
)

// CaptureResult is the completion event handed to the consumer after a
// successful still capture. ImageData is the raw captured bytes; downstream
// collaborators receive them together with the boundary flag.
type CaptureResult struct {
	ImageData        []byte
	BoundaryDetected bool
	Stability        float64
	Trigger          TriggerKind
	CapturedAtNanos  int64
}

// CameraController is what the coordinator needs from the camera session.
type CameraController interface {
	CaptureFrame(ctx context.Context) ([]byte, error)
	Start() error
	Stop()
}

// StateSnapshot is a point-in-time view of the coordinator for consumers.
type StateSnapshot struct {
	State        State   `json:"state"`
	Stability    float64 `json:"stability"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// CaptureCoordinator consumes detection results and manual triggers, and
// runs the capture state machine. Capture is single-flight: concurrent
// trigger attempts while a capture is in flight are silently ignored, never
// queued. Detector errors never reach this loop as failures; only
// capture-acquisition failures surface as the Error state.
type CaptureCoordinator struct {
	camera           CameraController
	tracker          *StabilityTracker
	stats            *FrameStats
	errorRevertDelay time.Duration
	captureTimeout   time.Duration

	mu         sync.Mutex
	state      State
	errMessage string
	errSeq     int
	stability  float64
	lastQuad   *Quadrilateral
	capturing  bool

	captures chan CaptureResult
}

// NewCaptureCoordinator creates a coordinator in the Idle state.
func NewCaptureCoordinator(cam CameraController, tracker *StabilityTracker, stats *FrameStats) *CaptureCoordinator {
	return &CaptureCoordinator{
		camera:           cam,
		tracker:          tracker,
		stats:            stats,
		errorRevertDelay: ErrorRevertDelay,
		captureTimeout:   camera.DefaultCaptureTimeout,
		state:            StateIdle,
		captures:         make(chan CaptureResult, 4),
	}
}

// Captures returns the channel of capture-completion events.
func (c *CaptureCoordinator) Captures() <-chan CaptureResult {
	return c.captures
}

// Snapshot returns the current coordinator state.
func (c *CaptureCoordinator) Snapshot() StateSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return StateSnapshot{
		State:        c.state,
		Stability:    c.stability,
		ErrorMessage: c.errMessage,
	}
}

// Run consumes detection results until the context is cancelled or the
// stream closes. Cancelling this consumer stops its iteration only; the
// frame producer keeps running while the camera session is active.
func (c *CaptureCoordinator) Run(ctx context.Context, results <-chan FrameDetectionResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-results:
			if !ok {
				return
			}
			c.handleResult(ctx, r)
		}
	}
}

func (c *CaptureCoordinator) handleResult(ctx context.Context, r FrameDetectionResult) {
	c.mu.Lock()
	c.lastQuad = r.SmoothedQuad
	c.stability = r.Stability

	// Results arriving during a capture or a pending error recovery are
	// skipped, never buffered for later reprocessing.
	if c.state == StateCapturing || c.state == StateError {
		c.mu.Unlock()
		return
	}

	c.state = StateDetecting
	auto := r.ShouldAutoCapture
	stability := r.Stability
	c.mu.Unlock()

	if auto {
		c.trigger(ctx, TriggerAuto, stability)
	}
}

// ManualCapture requests a still capture on user action. Valid only while a
// smoothed quad is present; otherwise the coordinator enters the Error state
// and auto-reverts after the fixed delay.
func (c *CaptureCoordinator) ManualCapture(ctx context.Context) {
	c.mu.Lock()
	if c.capturing {
		c.mu.Unlock()
		return
	}
	if c.lastQuad == nil {
		c.enterErrorLocked("no rectangle detected")
		c.mu.Unlock()
		return
	}
	stability := c.stability
	c.mu.Unlock()

	c.trigger(ctx, TriggerManual, stability)
}

// trigger starts a single-flight capture. Attempts while the guard is set
// return silently.
func (c *CaptureCoordinator) trigger(ctx context.Context, kind TriggerKind, stability float64) {
	c.mu.Lock()
	if c.capturing {
		c.mu.Unlock()
		return
	}
	c.capturing = true
	c.state = StateCapturing
	boundary := c.lastQuad != nil
	c.mu.Unlock()

	go c.capture(ctx, kind, stability, boundary)
}

func (c *CaptureCoordinator) capture(ctx context.Context, kind TriggerKind, stability float64, boundary bool) {
	cctx, cancel := context.WithTimeout(ctx, c.captureTimeout)
	defer cancel()

	data, err := c.camera.CaptureFrame(cctx)
	if err != nil {
		log.Printf("Still capture failed: %v", err)
		c.mu.Lock()
		c.capturing = false
		c.enterErrorLocked(fmt.Sprintf("capture failed: %v", err))
		c.mu.Unlock()
		return
	}

	// The session stops once a still is acquired; the capture-review flow
	// owns re-arming via Reset.
	c.camera.Stop()
	if c.stats != nil {
		c.stats.AddCapture()
	}

	result := CaptureResult{
		ImageData:        data,
		BoundaryDetected: boundary,
		Stability:        stability,
		Trigger:          kind,
		CapturedAtNanos:  time.Now().UnixNano(),
	}
	select {
	case c.captures <- result:
	default:
		log.Printf("Capture completion dropped: no consumer draining events")
	}
}

// enterErrorLocked surfaces a capture-path error and schedules the timed
// revert. A newer message or a Reset supersedes the pending revert.
func (c *CaptureCoordinator) enterErrorLocked(msg string) {
	c.state = StateError
	c.errMessage = msg
	c.errSeq++
	seq := c.errSeq

	time.AfterFunc(c.errorRevertDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.errSeq != seq || c.state != StateError {
			return
		}
		c.errMessage = ""
		if c.lastQuad != nil {
			c.state = StateDetecting
		} else {
			c.state = StateIdle
		}
	})
}

// Reset returns the coordinator to Idle from any state: clears the
// single-flight guard and any pending error, clears the tracker state, and
// restarts the camera session so detection resumes.
func (c *CaptureCoordinator) Reset() {
	c.mu.Lock()
	c.state = StateIdle
	c.capturing = false
	c.errMessage = ""
	c.errSeq++ // supersede any pending error revert
	c.stability = 0
	c.lastQuad = nil
	c.mu.Unlock()

	c.tracker.Reset()
	if err := c.camera.Start(); err != nil {
		log.Printf("Failed to restart camera session after reset: %v", err)
	}
}
