package camera

import (
	"fmt"
	"sync"
)

// MockDevice implements Device for testing and dev mode. Exported error
// fields let tests force specific failure paths.
type MockDevice struct {
	// MinSupportedWidth rejects Start for presets wider than this value,
	// exercising the resolution fallback ladder. Zero accepts everything.
	MinSupportedWidth int
	StartError        error
	StopError         error
	ZoomError         error
	TorchError        error
	DeviceOptics      DeviceOptics

	mu           sync.Mutex
	started      bool
	startedWith  ResolutionPreset
	startCount   int
	zoomApplied  float64
	torchState   bool
	torchCalls   int

	frames chan Frame
}

// NewMockDevice creates a mock device with a buffered frame channel.
func NewMockDevice() *MockDevice {
	return &MockDevice{
		DeviceOptics: DeviceOptics{
			HorizontalFOVRadians:   1.2,
			MinFocusDistanceMeters: 0.1,
			MaxZoomFactor:          5.0,
		},
		frames: make(chan Frame, 16),
	}
}

func (d *MockDevice) Start(preset ResolutionPreset) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.StartError != nil {
		return d.StartError
	}
	if d.MinSupportedWidth > 0 && preset.Width > d.MinSupportedWidth {
		return fmt.Errorf("preset %s not supported", preset.Name)
	}
	d.started = true
	d.startedWith = preset
	d.startCount++
	return nil
}

func (d *MockDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	return d.StopError
}

func (d *MockDevice) Frames() <-chan Frame {
	return d.frames
}

func (d *MockDevice) SetZoom(factor float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ZoomError != nil {
		return d.ZoomError
	}
	d.zoomApplied = factor
	return nil
}

func (d *MockDevice) SetTorch(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.torchCalls++
	if d.TorchError != nil {
		return d.TorchError
	}
	d.torchState = on
	return nil
}

func (d *MockDevice) Optics() DeviceOptics {
	return d.DeviceOptics
}

// PushFrame delivers a synthetic frame as if produced by hardware.
func (d *MockDevice) PushFrame(f Frame) {
	d.frames <- f
}

// CloseFrames closes the frame channel, ending any consuming loop.
func (d *MockDevice) CloseFrames() {
	close(d.frames)
}

// Started reports whether the device is currently delivering frames.
func (d *MockDevice) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// StartedWith returns the preset accepted by the most recent Start call.
func (d *MockDevice) StartedWith() ResolutionPreset {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startedWith
}

// StartCount returns how many times Start succeeded.
func (d *MockDevice) StartCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startCount
}

// ZoomApplied returns the last zoom factor accepted by SetZoom.
func (d *MockDevice) ZoomApplied() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.zoomApplied
}

// TorchState returns the hardware torch state (not the logical state the
// session manager reports).
func (d *MockDevice) TorchState() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.torchState
}
