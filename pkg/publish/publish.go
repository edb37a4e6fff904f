// Package publish defines the sink that receives completed frames and
// an in-process fan-out implementation.
package publish

import (
	"time"

	"cam-streamd/pkg/calibration"
)

// Header accompanies every published frame.
type Header struct {
	FrameID   string
	Timestamp time.Time
	Sequence  uint32
}

// Image is one packed frame payload. Stride is the published row
// length, which equals Width*bytes-per-pixel when stride removal ran.
type Image struct {
	Width     int
	Height    int
	Stride    int
	BigEndian bool
	Encoding  string
	Data      []byte
}

// Frame is the (header, payload, calibration) tuple handed to sinks.
type Frame struct {
	Header      Header
	Image       *Image
	Calibration *calibration.Record
}

// Sink accepts one frame per completed request. Implementations need
// not be safe for concurrent calls; the scheduler serializes them.
type Sink interface {
	Publish(Frame) error
}
