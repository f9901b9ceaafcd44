package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/api"
	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/camera"
	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/capturestore"
	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/config"
	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/scanner"
	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode with a synthetic steady document")
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", "capture_events.db", "Capture event database path (empty disables persistence)")
	configFile = flag.String("config", "", "Scanner tuning config JSON path")
	fixtures   = flag.String("fixtures", "fixtures.jsonl", "Recorded detection fixtures (JSONL, non-dev mode)")
	outDir     = flag.String("outdir", "captures", "Directory for captured still images")
	frameMs    = flag.Int("frame-ms", 33, "Synthetic frame interval in milliseconds")
)

// fixtureLine is one recorded frame: a timestamp offset plus an optional
// detection candidate.
type fixtureLine struct {
	OffsetMs   int64                  `json:"offset_ms"`
	Quad       *scanner.Quadrilateral `json:"quad,omitempty"`
	Confidence float64                `json:"confidence,omitempty"`
}

func loadFixtures(path string) ([]fixtureLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []fixtureLine
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		text := sc.Text()
		if text == "" {
			continue
		}
		var line fixtureLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			return nil, fmt.Errorf("bad fixture line %d: %w", len(lines)+1, err)
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// fixtureScript converts fixture lines into a finder script.
func fixtureScript(lines []fixtureLine) [][]scanner.DetectionCandidate {
	script := make([][]scanner.DetectionCandidate, len(lines))
	for i, line := range lines {
		if line.Quad != nil {
			script[i] = []scanner.DetectionCandidate{{Quad: *line.Quad, Confidence: line.Confidence}}
		}
	}
	return script
}

// feedFrames pushes synthetic frames while the device is started, simulating
// hardware frame delivery. Stops when the context is cancelled.
func feedFrames(ctx context.Context, device *camera.MockDevice, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !device.Started() {
				continue
			}
			seq++
			device.PushFrame(camera.Frame{
				Data:      []byte(fmt.Sprintf("frame-%06d", seq)),
				Width:     device.StartedWith().Width,
				Height:    device.StartedWith().Height,
				UnixNanos: time.Now().UnixNano(),
			})
		}
	}
}

// persistCaptures drains capture-completion events: records them in the
// store and writes the still image to the output directory.
func persistCaptures(ctx context.Context, svc *scanner.Service, store *capturestore.Store, sessionID, outDir string) {
	for {
		var capture scanner.CaptureResult
		select {
		case <-ctx.Done():
			return
		case capture = <-svc.Captures():
		}
		name := uuid.New().String() + ".img"
		if outDir != "" {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				log.Printf("Failed to create output directory: %v", err)
			} else if err := os.WriteFile(filepath.Join(outDir, name), capture.ImageData, 0o644); err != nil {
				log.Printf("Failed to write captured image: %v", err)
			}
		}

		if store != nil {
			event := &capturestore.CaptureEvent{
				SessionID:        sessionID,
				CapturedAtNs:     capture.CapturedAtNanos,
				BoundaryDetected: capture.BoundaryDetected,
				Stability:        capture.Stability,
				Trigger:          string(capture.Trigger),
				ByteSize:         len(capture.ImageData),
			}
			if err := store.Insert(event); err != nil {
				log.Printf("Failed to record capture event: %v", err)
			}
		}

		log.Printf("Captured still: trigger=%s stability=%.2f bytes=%d boundary=%v",
			capture.Trigger, capture.Stability, len(capture.ImageData), capture.BoundaryDetected)
	}
}

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning := config.EmptyTuningConfig()
	if *configFile != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	device := camera.NewMockDevice()
	finder := &scanner.MockQuadFinder{}
	if *devMode {
		// A steady, well-framed document: the session should auto-capture
		// once the stability threshold elapses.
		finder.Repeat = []scanner.DetectionCandidate{
			{Quad: scanner.CenteredQuad(0.3), Confidence: 0.95},
		}
	} else {
		lines, err := loadFixtures(*fixtures)
		if err != nil {
			log.Fatalf("Failed to load fixtures file (use -dev for a synthetic session): %v", err)
		}
		finder.Script = fixtureScript(lines)
	}

	svc, err := scanner.NewService(scanner.ServiceConfig{
		Device:       device,
		Optics:       tuning.Optics(),
		Finder:       finder,
		Detection:    tuning.Detection(),
		StreamBuffer: tuning.GetStreamBuffer(),
	})
	if err != nil {
		log.Fatalf("Failed to build scanner service: %v", err)
	}

	var store *capturestore.Store
	if *dbFile != "" {
		store, err = capturestore.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open capture store: %v", err)
		}
		defer store.Close()
	}

	sessionID := uuid.New().String()
	log.Printf("ReceiptRecognition %s (%s built %s), scanning session %s",
		version.Version, version.GitSHA, version.BuildTime, sessionID)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.StartScanning(); err != nil {
		log.Fatalf("Failed to start camera session: %v", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := svc.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Scanner service stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		feedFrames(ctx, device, time.Duration(*frameMs)*time.Millisecond)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		persistCaptures(ctx, svc, store, sessionID, *outDir)
	}()

	var eventSource api.EventSource
	if store != nil {
		eventSource = store
	}
	server := api.NewServer(svc, eventSource, tuning)
	httpServer := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(server.ServeMux()),
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP server listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	svc.StopScanning()

	wg.Wait()
}
