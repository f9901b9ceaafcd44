package scanner

import (
	"context"
	"log"
	"sync"

	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/camera"
)

// Service is the consumer-facing surface of the scanning core. It wires the
// camera session, the processing engine, the streamer, and the capture
// coordinator for one scanning-session lifetime.
type Service struct {
	session     *camera.SessionManager
	tracker     *StabilityTracker
	boundary    *BoundaryDetector
	streamer    *DetectionStreamer
	stats       *FrameStats
	engine      *Engine
	coordinator *CaptureCoordinator

	mu      sync.Mutex
	config  DetectionConfig
	pending *DetectionConfig
}

// ServiceConfig bundles the service dependencies.
type ServiceConfig struct {
	Device       camera.Device
	PresetTiers  []camera.ResolutionPreset
	Optics       camera.OpticsConfig
	Finder       QuadFinder
	Detection    DetectionConfig
	StreamBuffer int
}

// NewService builds a scanning service. The detection configuration is
// validated here; construction fails rather than running with a broken
// tuning.
func NewService(config ServiceConfig) (*Service, error) {
	tracker, err := NewStabilityTracker(config.Detection)
	if err != nil {
		return nil, err
	}

	stats := NewFrameStats()
	streamer := NewDetectionStreamer(config.StreamBuffer, stats)
	session := camera.NewSessionManager(config.Device, config.PresetTiers, config.Optics)
	boundary := NewBoundaryDetector(config.Detection)
	coordinator := NewCaptureCoordinator(session, tracker, stats)
	engine := NewEngine(EngineConfig{
		Session:  session,
		Finder:   config.Finder,
		Boundary: boundary,
		Tracker:  tracker,
		Streamer: streamer,
		Stats:    stats,
	})

	return &Service{
		config:      config.Detection,
		session:     session,
		tracker:     tracker,
		boundary:    boundary,
		streamer:    streamer,
		stats:       stats,
		engine:      engine,
		coordinator: coordinator,
	}, nil
}

// Run starts the processing loop and the coordinator and blocks until the
// context is cancelled. The streamer closes on the way out, ending the
// coordinator's iteration.
func (s *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.coordinator.Run(ctx, s.streamer.Results())
	}()

	err := s.engine.Run(ctx)

	s.streamer.Close()
	wg.Wait()
	return err
}

// StartScanning starts (or resumes) the camera session. The streamer and
// the processing loop span start/stop cycles; no new channel instance is
// needed on resume.
func (s *Service) StartScanning() error {
	return s.session.Start()
}

// StopScanning pauses frame delivery without tearing the session down.
func (s *Service) StopScanning() {
	s.session.Stop()
}

// ManualCapture requests a still capture on user action.
func (s *Service) ManualCapture(ctx context.Context) {
	s.coordinator.ManualCapture(ctx)
}

// ToggleFlash flips the torch and reports the resulting logical state.
func (s *Service) ToggleFlash() bool {
	return s.session.ToggleFlash()
}

// ApplyDetection stages a new detection configuration. Tuning is fixed for
// the lifetime of a scan, so the staged configuration takes effect at the
// next reset, never mid-scan.
func (s *Service) ApplyDetection(config DetectionConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.pending = &config
	s.mu.Unlock()
	return nil
}

// ResetForNextScan re-arms the coordinator and tracker and restarts the
// camera session after a capture review. Any staged detection configuration
// becomes active here.
func (s *Service) ResetForNextScan() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	if pending != nil {
		s.config = *pending
	}
	s.mu.Unlock()

	if pending != nil {
		if err := s.tracker.Reconfigure(*pending); err != nil {
			// Staged configs are validated in ApplyDetection.
			log.Printf("Failed to apply staged detection config: %v", err)
		}
		s.boundary.SetConfig(*pending)
	}
	s.coordinator.Reset()
}

// State returns the coordinator state snapshot.
func (s *Service) State() StateSnapshot {
	return s.coordinator.Snapshot()
}

// Stats returns a snapshot of the processing counters.
func (s *Service) Stats() FrameStatsSnapshot {
	return s.stats.Snapshot()
}

// Captures returns the capture-completion event channel.
func (s *Service) Captures() <-chan CaptureResult {
	return s.coordinator.Captures()
}

// Detection returns the active detection configuration.
func (s *Service) Detection() DetectionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Session exposes the camera session manager.
func (s *Service) Session() *camera.SessionManager {
	return s.session
}
