package scanner

import (
	"fmt"
	"time"
)

// DetectionConfig holds the tuning parameters for boundary validation and
// stability tracking. Constructed once per scanning session and shared
// read-only thereafter.
type DetectionConfig struct {
	StabilityThreshold         time.Duration // How long a quad must hold steady before auto-capture
	PositionTolerance          float64       // Per-axis corner delta allowed between consecutive frames
	MinConsecutiveStableFrames int           // Stable frames required before the timer starts
	MaxAreaRatio               float64       // Detections covering more of the frame are false positives
	MinEdgeMargin              float64       // Corners closer to a frame edge risk clipping
	MinConfidence              float64       // Detector confidence floor
	SmoothingFactor            float64       // EMA alpha for corner smoothing
}

// DefaultDetectionConfig returns the tuning used for receipt scanning.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		StabilityThreshold:         time.Second,
		PositionTolerance:          0.02,
		MinConsecutiveStableFrames: 3,
		MaxAreaRatio:               0.95,
		MinEdgeMargin:              0.02,
		MinConfidence:              0.6,
		SmoothingFactor:            0.5,
	}
}

// Validate checks the configuration invariants. A non-positive stability
// threshold is a construction-time error and never occurs mid-session.
func (c DetectionConfig) Validate() error {
	if c.StabilityThreshold <= 0 {
		return fmt.Errorf("stability threshold must be positive, got %v", c.StabilityThreshold)
	}
	if c.PositionTolerance <= 0 {
		return fmt.Errorf("position tolerance must be positive, got %v", c.PositionTolerance)
	}
	if c.MinConsecutiveStableFrames < 1 {
		return fmt.Errorf("min consecutive stable frames must be >= 1, got %d", c.MinConsecutiveStableFrames)
	}
	if c.MaxAreaRatio <= 0 || c.MaxAreaRatio > 1 {
		return fmt.Errorf("max area ratio must be in (0,1], got %v", c.MaxAreaRatio)
	}
	if c.MinEdgeMargin < 0 || c.MinEdgeMargin >= 0.5 {
		return fmt.Errorf("min edge margin must be in [0,0.5), got %v", c.MinEdgeMargin)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0,1], got %v", c.MinConfidence)
	}
	if c.SmoothingFactor <= 0 || c.SmoothingFactor > 1 {
		return fmt.Errorf("smoothing factor must be in (0,1], got %v", c.SmoothingFactor)
	}
	return nil
}
