package camera

import "time"

// ResolutionPreset identifies a capture-session configuration the device may
// or may not support. Presets are attempted highest-first; see
// SessionManager.Start for the fallback behaviour.
type ResolutionPreset struct {
	Name   string
	Width  int
	Height int
}

// DefaultPresetTiers is the fallback ladder used when the caller does not
// supply an explicit tier list.
var DefaultPresetTiers = []ResolutionPreset{
	{Name: "uhd4k", Width: 3840, Height: 2160},
	{Name: "hd1080", Width: 1920, Height: 1080},
	{Name: "hd720", Width: 1280, Height: 720},
}

// Device defines the minimal interface needed for a camera device. Real
// hardware integrations and the mock device both implement it, so the session
// manager and the processing loop never touch hardware directly.
type Device interface {
	// Start configures the device for the given preset and begins frame
	// delivery. It returns an error if the preset is unsupported.
	Start(preset ResolutionPreset) error
	// Stop halts frame delivery. Stop must be safe to call more than once.
	Stop() error
	// Frames returns the channel on which the device delivers raw frames.
	// The channel stays valid across Stop/Start cycles.
	Frames() <-chan Frame
	// SetZoom applies a digital/optical zoom factor.
	SetZoom(factor float64) error
	// SetTorch switches the torch on or off.
	SetTorch(on bool) error

	// Optics reports fixed optical characteristics used for zoom computation.
	Optics() DeviceOptics
}

// DeviceOptics describes the fixed optical characteristics of a device.
type DeviceOptics struct {
	// HorizontalFOVRadians is the full horizontal field of view.
	HorizontalFOVRadians float64
	// MinFocusDistanceMeters is the closest distance at which the device can
	// focus. Zero means unknown.
	MinFocusDistanceMeters float64
	// MaxZoomFactor is the largest zoom factor the device accepts.
	MaxZoomFactor float64
}

// DefaultCaptureTimeout bounds how long an on-demand still capture may wait
// for the image pipeline before reporting a capture failure.
const DefaultCaptureTimeout = 2 * time.Second
