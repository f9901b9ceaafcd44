package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/capturestore"
	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/config"
	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/httputil"
	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/scanner"
	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// ScannerControl is the consumer-facing scanning surface the server drives.
type ScannerControl interface {
	StartScanning() error
	StopScanning()
	ManualCapture(ctx context.Context)
	ToggleFlash() bool
	ResetForNextScan()
	ApplyDetection(config scanner.DetectionConfig) error
	State() scanner.StateSnapshot
	Stats() scanner.FrameStatsSnapshot
}

// EventSource reads back persisted capture events.
type EventSource interface {
	RecentEvents(limit int) ([]capturestore.CaptureEvent, error)
}

// Server exposes scanner status and controls over HTTP.
type Server struct {
	scanner ScannerControl
	events  EventSource

	mu     sync.Mutex
	tuning *config.TuningConfig
}

// NewServer creates an API server. events may be nil when no capture store
// is configured.
func NewServer(scanner ScannerControl, events EventSource, tuning *config.TuningConfig) *Server {
	return &Server{
		scanner: scanner,
		events:  events,
		tuning:  tuning,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the route table for the scanner API.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/params", s.showParams)
	mux.HandleFunc("/api/captures", s.listCaptures)
	mux.HandleFunc("/api/scan/start", s.startScanning)
	mux.HandleFunc("/api/scan/stop", s.stopScanning)
	mux.HandleFunc("/api/scan/capture", s.manualCapture)
	mux.HandleFunc("/api/scan/flash", s.toggleFlash)
	mux.HandleFunc("/api/scan/reset", s.resetScan)
	return mux
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"version": version.Version,
		"scanner": s.scanner.State(),
		"stats":   s.scanner.Stats(),
	})
}

func (s *Server) showParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeParams(w)
	case http.MethodPost:
		s.updateParams(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) writeParams(w http.ResponseWriter) {
	s.mu.Lock()
	tuning := s.tuning
	s.mu.Unlock()

	detection := tuning.Detection()
	params := map[string]interface{}{
		"stability_threshold_seconds":   detection.StabilityThreshold.Seconds(),
		"position_tolerance":            detection.PositionTolerance,
		"min_consecutive_stable_frames": detection.MinConsecutiveStableFrames,
		"max_area_ratio":                detection.MaxAreaRatio,
		"min_edge_margin":               detection.MinEdgeMargin,
		"min_confidence":                detection.MinConfidence,
		"smoothing_factor":              detection.SmoothingFactor,
		"stream_buffer":                 tuning.GetStreamBuffer(),
		"min_document_width_meters":     tuning.GetMinDocumentWidthMeters(),
		"fill_fraction":                 tuning.GetFillFraction(),
	}
	httputil.WriteJSONOK(w, params)
}

// updateParams accepts a partial tuning config: fields absent from the body
// keep their current values. The scanning core stages the result and applies
// it at the next reset, never mid-scan.
func (s *Server) updateParams(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	updated := *s.tuning
	s.mu.Unlock()

	body := http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(body).Decode(&updated); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid params body: %v", err))
		return
	}
	if err := updated.Validate(); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid configuration: %v", err))
		return
	}

	if err := s.scanner.ApplyDetection(updated.Detection()); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to stage params: %v", err))
		return
	}

	s.mu.Lock()
	s.tuning = &updated
	s.mu.Unlock()

	s.writeParams(w)
}

func (s *Server) listCaptures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.events == nil {
		httputil.NotFound(w, "no capture store configured")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	events, err := s.events.RecentEvents(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve captures: %v", err))
		return
	}
	httputil.WriteJSONOK(w, events)
}

func (s *Server) startScanning(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	if err := s.scanner.StartScanning(); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to start scanning: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "scanning"})
}

func (s *Server) stopScanning(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	s.scanner.StopScanning()
	httputil.WriteJSONOK(w, map[string]string{"status": "stopped"})
}

func (s *Server) manualCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	// The capture outlives the HTTP request: completion is reported on the
	// capture event channel, not in this response.
	s.scanner.ManualCapture(context.Background())
	httputil.WriteJSONOK(w, s.scanner.State())
}

func (s *Server) toggleFlash(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, map[string]bool{"flash_on": s.scanner.ToggleFlash()})
}

func (s *Server) resetScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	s.scanner.ResetForNextScan()
	httputil.WriteJSONOK(w, s.scanner.State())
}
