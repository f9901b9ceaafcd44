// Package main provides an offline replay tool for the stability tracker.
// It feeds a recorded sequence of per-frame detection candidates through the
// boundary detector and stability tracker at their recorded timestamps and
// prints the resulting stability trace.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/config"
	"github.com/taniguchi-kyoichi/ReceiptRecognition/internal/scanner"
)

// replayLine is one recorded frame: a millisecond offset from session start
// plus an optional candidate.
type replayLine struct {
	OffsetMs   int64                  `json:"offset_ms"`
	Quad       *scanner.Quadrilateral `json:"quad,omitempty"`
	Confidence float64                `json:"confidence,omitempty"`
}

// replaySummary aggregates the replay outcome.
type replaySummary struct {
	Frames            int     `json:"frames"`
	Candidates        int     `json:"candidates"`
	Rejected          int     `json:"rejected"`
	MaxStability      float64 `json:"max_stability"`
	AutoCaptureAtMs   int64   `json:"auto_capture_at_ms"`
	AutoCaptureFrames int     `json:"auto_capture_frame"`
}

func main() {
	var (
		inputFile  = flag.String("input", "", "JSONL file of recorded detections (required)")
		configFile = flag.String("config", "", "Scanner tuning config JSON path")
		verbose    = flag.Bool("verbose", false, "Print one trace line per frame")
		jsonOut    = flag.Bool("json", false, "Print the summary as JSON")
	)
	flag.Parse()

	if *inputFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	tuning := config.EmptyTuningConfig()
	if *configFile != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}
	detection := tuning.Detection()

	f, err := os.Open(*inputFile)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer f.Close()

	boundary := scanner.NewBoundaryDetector(detection)
	tracker, err := scanner.NewStabilityTracker(detection)
	if err != nil {
		log.Fatalf("Invalid detection config: %v", err)
	}

	start := time.Unix(0, 0)
	var summary replaySummary

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		text := sc.Text()
		if text == "" {
			continue
		}
		lineNo++

		var line replayLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			log.Fatalf("Bad replay line %d: %v", lineNo, err)
		}

		var candidate *scanner.DetectionCandidate
		if line.Quad != nil {
			raw := []scanner.DetectionCandidate{{Quad: *line.Quad, Confidence: line.Confidence}}
			candidate = boundary.Detect(raw)
			if candidate != nil {
				summary.Candidates++
			} else {
				summary.Rejected++
			}
		}

		now := start.Add(time.Duration(line.OffsetMs) * time.Millisecond)
		result := tracker.Update(candidate, now)
		summary.Frames++

		if result.Stability > summary.MaxStability {
			summary.MaxStability = result.Stability
		}
		if result.ShouldAutoCapture && summary.AutoCaptureAtMs == 0 {
			summary.AutoCaptureAtMs = line.OffsetMs
			summary.AutoCaptureFrames = summary.Frames
		}

		if *verbose {
			marker := " "
			if result.ShouldAutoCapture {
				marker = "*"
			}
			fmt.Printf("%s t=%6dms stability=%.3f candidate=%v\n",
				marker, line.OffsetMs, result.Stability, candidate != nil)
		}
	}
	if err := sc.Err(); err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			log.Fatalf("Failed to encode summary: %v", err)
		}
		return
	}

	fmt.Printf("Replayed %d frames: %d candidates, %d rejected\n",
		summary.Frames, summary.Candidates, summary.Rejected)
	fmt.Printf("Max stability: %.3f\n", summary.MaxStability)
	if summary.AutoCaptureAtMs > 0 {
		fmt.Printf("Auto-capture at %dms (frame %d)\n", summary.AutoCaptureAtMs, summary.AutoCaptureFrames)
	} else {
		fmt.Println("Auto-capture never triggered")
	}
}
