package camera

import "math"

// OpticsConfig holds the document-framing parameters used to compute the
// minimum zoom factor for a scanning session.
type OpticsConfig struct {
	// MinDocumentWidthMeters is the physical width of the smallest document
	// the session should be able to fill the frame with.
	MinDocumentWidthMeters float64
	// FillFraction is the fraction of the frame width the document should
	// occupy at the minimum subject distance.
	FillFraction float64
}

// DefaultOpticsConfig targets a standard receipt (80mm paper roll) filling
// 90% of the frame.
func DefaultOpticsConfig() OpticsConfig {
	return OpticsConfig{
		MinDocumentWidthMeters: 0.08,
		FillFraction:           0.9,
	}
}

// MinimumSubjectDistance returns the closest distance at which a document of
// the configured width fills the configured fraction of the frame, given the
// device's horizontal field of view.
func MinimumSubjectDistance(cfg OpticsConfig, fovRadians float64) float64 {
	if cfg.FillFraction <= 0 || fovRadians <= 0 {
		return 0
	}
	return (cfg.MinDocumentWidthMeters / cfg.FillFraction) / math.Tan(fovRadians/2)
}

// RequiredZoomFactor computes the zoom needed so the document remains in
// focus at its minimum subject distance. When the device can focus closer
// than the minimum subject distance no zoom is needed and 1.0 is returned.
// The result is clamped to the device's maximum zoom.
func RequiredZoomFactor(cfg OpticsConfig, optics DeviceOptics) float64 {
	minSubject := MinimumSubjectDistance(cfg, optics.HorizontalFOVRadians)
	if minSubject <= 0 {
		return 1.0
	}
	if optics.MinFocusDistanceMeters <= minSubject {
		return 1.0
	}
	zoom := optics.MinFocusDistanceMeters / minSubject
	if optics.MaxZoomFactor > 0 && zoom > optics.MaxZoomFactor {
		zoom = optics.MaxZoomFactor
	}
	if zoom < 1.0 {
		zoom = 1.0
	}
	return zoom
}
