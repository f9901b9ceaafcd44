package camera

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// ErrNoFrame is returned by CaptureFrame when no frame has been observed yet.
var ErrNoFrame = fmt.Errorf("no frame buffer available")

// SessionManager owns the live capture session for one scanning surface. It
// starts the device with a resolution fallback ladder, applies the computed
// zoom, exposes the most recently observed raw frame for on-demand still
// capture, and toggles the torch best-effort.
//
// The latest-frame buffer is written exclusively by the frame-processing
// goroutine (via StoreLatestFrame) and read by capture requests on other
// goroutines, so all access goes through the mutex.
type SessionManager struct {
	device  Device
	tiers   []ResolutionPreset
	optics  OpticsConfig

	mu      sync.Mutex
	latest  *Frame
	running bool
	preset  ResolutionPreset
	torchOn bool
	zoom    float64
}

// NewSessionManager creates a session manager for the given device. If tiers
// is empty the DefaultPresetTiers ladder is used.
func NewSessionManager(device Device, tiers []ResolutionPreset, optics OpticsConfig) *SessionManager {
	if len(tiers) == 0 {
		tiers = DefaultPresetTiers
	}
	return &SessionManager{
		device: device,
		tiers:  tiers,
		optics: optics,
		zoom:   1.0,
	}
}

// Start attempts each resolution preset in order until the device accepts
// one, then applies the computed minimum zoom factor. Returns an error only
// when every tier fails.
func (m *SessionManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	var lastErr error
	for _, preset := range m.tiers {
		if err := m.device.Start(preset); err != nil {
			log.Printf("Camera preset %s (%dx%d) unavailable: %v", preset.Name, preset.Width, preset.Height, err)
			lastErr = err
			continue
		}
		m.preset = preset
		m.running = true

		zoom := RequiredZoomFactor(m.optics, m.device.Optics())
		if err := m.device.SetZoom(zoom); err != nil {
			// Zoom is an optimisation for small documents, not a requirement.
			log.Printf("Failed to apply zoom %.2f: %v", zoom, err)
		} else {
			m.zoom = zoom
		}

		log.Printf("Camera session started: preset=%s zoom=%.2f", preset.Name, zoom)
		return nil
	}

	return fmt.Errorf("no supported resolution preset: %w", lastErr)
}

// Stop halts frame delivery. The latest-frame buffer is retained so a
// pending capture request can still complete against the last seen frame.
func (m *SessionManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if err := m.device.Stop(); err != nil {
		log.Printf("Error stopping camera device: %v", err)
	}
	m.running = false
}

// Running reports whether the session is currently delivering frames.
func (m *SessionManager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Preset returns the resolution preset the device accepted at Start.
func (m *SessionManager) Preset() ResolutionPreset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preset
}

// Zoom returns the zoom factor applied to the current session.
func (m *SessionManager) Zoom() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zoom
}

// Frames exposes the device frame channel for the processing loop.
func (m *SessionManager) Frames() <-chan Frame {
	return m.device.Frames()
}

// StoreLatestFrame records the most recent raw frame. Called once per frame
// by the processing goroutine; the stored frame is what CaptureFrame returns,
// so the captured still is always the frame the user last saw.
func (m *SessionManager) StoreLatestFrame(f Frame) {
	m.mu.Lock()
	m.latest = &f
	m.mu.Unlock()
}

// CaptureFrame extracts a still image from the most recently observed frame.
// It returns a copy of the frame bytes so the caller never aliases the
// producer's buffer. Fails with ErrNoFrame when nothing has been observed.
func (m *SessionManager) CaptureFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	frame := m.latest
	m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil, ErrNoFrame
	}

	data := make([]byte, len(frame.Data))
	copy(data, frame.Data)
	return data, nil
}

// ToggleFlash flips the requested torch state. Hardware failures are
// swallowed: the requested logical state is recorded and reported back so
// the caller's UI stays consistent with the user's intent.
func (m *SessionManager) ToggleFlash() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	requested := !m.torchOn
	if err := m.device.SetTorch(requested); err != nil {
		log.Printf("Torch toggle failed (continuing with logical state %v): %v", requested, err)
	}
	m.torchOn = requested
	return m.torchOn
}

// TorchOn reports the current logical torch state.
func (m *SessionManager) TorchOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.torchOn
}
