package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/camera"
	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/scanner"
)

// TuningConfig represents the scanner tuning parameters as loaded from a
// JSON file. All fields are pointers so a partial config only overrides what
// it names; the Get* accessors fall back to defaults for absent fields. The
// schema matches the /api/params endpoint so the same JSON works for both
// startup configuration and inspection.
type TuningConfig struct {
	// Stability params
	StabilityThresholdSeconds  *float64 `json:"stability_threshold_seconds,omitempty"`
	PositionTolerance          *float64 `json:"position_tolerance,omitempty"`
	MinConsecutiveStableFrames *int     `json:"min_consecutive_stable_frames,omitempty"`
	SmoothingFactor            *float64 `json:"smoothing_factor,omitempty"`

	// Boundary validation params
	MaxAreaRatio  *float64 `json:"max_area_ratio,omitempty"`
	MinEdgeMargin *float64 `json:"min_edge_margin,omitempty"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`

	// Stream params
	StreamBuffer *int `json:"stream_buffer,omitempty"`

	// Optics params
	MinDocumentWidthMeters *float64 `json:"min_document_width_meters,omitempty"`
	FillFraction           *float64 `json:"fill_fraction,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate materialises the detection configuration and runs the scanner
// package's invariant checks, plus the checks that only exist at this layer.
func (c *TuningConfig) Validate() error {
	if err := c.Detection().Validate(); err != nil {
		return err
	}
	if v := c.GetFillFraction(); v <= 0 || v > 1 {
		return fmt.Errorf("fill fraction must be in (0,1], got %v", v)
	}
	if v := c.GetMinDocumentWidthMeters(); v <= 0 {
		return fmt.Errorf("min document width must be positive, got %v", v)
	}
	if c.StreamBuffer != nil && *c.StreamBuffer < 1 {
		return fmt.Errorf("stream buffer must be >= 1, got %d", *c.StreamBuffer)
	}
	return nil
}

func (c *TuningConfig) GetStabilityThreshold() time.Duration {
	if c.StabilityThresholdSeconds != nil {
		return time.Duration(*c.StabilityThresholdSeconds * float64(time.Second))
	}
	return scanner.DefaultDetectionConfig().StabilityThreshold
}

func (c *TuningConfig) GetPositionTolerance() float64 {
	if c.PositionTolerance != nil {
		return *c.PositionTolerance
	}
	return scanner.DefaultDetectionConfig().PositionTolerance
}

func (c *TuningConfig) GetMinConsecutiveStableFrames() int {
	if c.MinConsecutiveStableFrames != nil {
		return *c.MinConsecutiveStableFrames
	}
	return scanner.DefaultDetectionConfig().MinConsecutiveStableFrames
}

func (c *TuningConfig) GetSmoothingFactor() float64 {
	if c.SmoothingFactor != nil {
		return *c.SmoothingFactor
	}
	return scanner.DefaultDetectionConfig().SmoothingFactor
}

func (c *TuningConfig) GetMaxAreaRatio() float64 {
	if c.MaxAreaRatio != nil {
		return *c.MaxAreaRatio
	}
	return scanner.DefaultDetectionConfig().MaxAreaRatio
}

func (c *TuningConfig) GetMinEdgeMargin() float64 {
	if c.MinEdgeMargin != nil {
		return *c.MinEdgeMargin
	}
	return scanner.DefaultDetectionConfig().MinEdgeMargin
}

func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence != nil {
		return *c.MinConfidence
	}
	return scanner.DefaultDetectionConfig().MinConfidence
}

func (c *TuningConfig) GetStreamBuffer() int {
	if c.StreamBuffer != nil {
		return *c.StreamBuffer
	}
	return scanner.DefaultStreamBuffer
}

func (c *TuningConfig) GetMinDocumentWidthMeters() float64 {
	if c.MinDocumentWidthMeters != nil {
		return *c.MinDocumentWidthMeters
	}
	return camera.DefaultOpticsConfig().MinDocumentWidthMeters
}

func (c *TuningConfig) GetFillFraction() float64 {
	if c.FillFraction != nil {
		return *c.FillFraction
	}
	return camera.DefaultOpticsConfig().FillFraction
}

// Detection materialises a scanner.DetectionConfig from the tuning values.
func (c *TuningConfig) Detection() scanner.DetectionConfig {
	return scanner.DetectionConfig{
		StabilityThreshold:         c.GetStabilityThreshold(),
		PositionTolerance:          c.GetPositionTolerance(),
		MinConsecutiveStableFrames: c.GetMinConsecutiveStableFrames(),
		MaxAreaRatio:               c.GetMaxAreaRatio(),
		MinEdgeMargin:              c.GetMinEdgeMargin(),
		MinConfidence:              c.GetMinConfidence(),
		SmoothingFactor:            c.GetSmoothingFactor(),
	}
}

// Optics materialises a camera.OpticsConfig from the tuning values.
func (c *TuningConfig) Optics() camera.OpticsConfig {
	return camera.OpticsConfig{
		MinDocumentWidthMeters: c.GetMinDocumentWidthMeters(),
		FillFraction:           c.GetFillFraction(),
	}
}
