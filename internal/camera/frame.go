package camera

// Frame is a single raw frame delivered by a camera device. Data holds the
// encoded frame bytes as produced by the device pipeline; the engine treats
// it as opaque.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	UnixNanos int64
}

// Empty reports whether the frame carries no pixel data. Empty frames are
// dropped by the processing loop without touching the detector.
func (f Frame) Empty() bool {
	return len(f.Data) == 0
}
