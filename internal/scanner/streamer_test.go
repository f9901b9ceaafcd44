package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dropCounter struct {
	dropped int
}

func (d *dropCounter) AddDroppedResult() { d.dropped++ }

func TestStreamerDeliversInOrder(t *testing.T) {
	s := NewDetectionStreamer(8, nil)

	for i := 0; i < 5; i++ {
		s.Publish(FrameDetectionResult{Stability: float64(i) / 10})
	}
	s.Close()

	var got []float64
	for r := range s.Results() {
		got = append(got, r.Stability)
	}
	require.Len(t, got, 5)
	for i, stability := range got {
		assert.Equal(t, float64(i)/10, stability, "result %d out of order", i)
	}
}

func TestStreamerDropsOldestWhenFull(t *testing.T) {
	drops := &dropCounter{}
	s := NewDetectionStreamer(3, drops)

	// Publish more than the buffer holds with no consumer attached.
	for i := 0; i < 10; i++ {
		s.Publish(FrameDetectionResult{Stability: float64(i)})
	}
	s.Close()

	var got []float64
	for r := range s.Results() {
		got = append(got, r.Stability)
	}

	// Only the newest results survive, still in production order.
	require.Equal(t, []float64{7, 8, 9}, got)
	assert.Equal(t, 7, drops.dropped)
}

func TestStreamerPublishNeverBlocks(t *testing.T) {
	s := NewDetectionStreamer(1, &dropCounter{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			s.Publish(FrameDetectionResult{})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with a full buffer and no consumer")
	}
}

func TestStreamerPublishAfterCloseIsNoop(t *testing.T) {
	s := NewDetectionStreamer(4, nil)
	s.Close()

	assert.NotPanics(t, func() {
		s.Publish(FrameDetectionResult{Stability: 0.5})
	})

	_, open := <-s.Results()
	assert.False(t, open, "channel should be closed")
}

func TestStreamerDefaultBuffer(t *testing.T) {
	s := NewDetectionStreamer(0, nil)
	assert.Equal(t, DefaultStreamBuffer, cap(s.ch))
}
