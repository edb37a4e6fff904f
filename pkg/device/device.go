// Package device defines the boundary to the camera driver layer:
// enumeration, stream configuration, buffer allocation, per-request
// control application and asynchronous completion delivery. The capture
// core only ever talks to these interfaces; pkg/device/v4l2drv provides
// the real implementation.
package device

import "fmt"

// PixelFormat is a driver-independent format name, e.g. "RGB24" or "YUYV".
type PixelFormat string

// StreamRole hints what the stream is negotiated for.
type StreamRole int

const (
	RoleViewfinder StreamRole = iota
	RoleVideoRecording
	RoleStillCapture
	RoleRaw
)

func ParseStreamRole(s string) (StreamRole, error) {
	switch s {
	case "viewfinder":
		return RoleViewfinder, nil
	case "video", "video_recording":
		return RoleVideoRecording, nil
	case "still", "still_capture":
		return RoleStillCapture, nil
	case "raw":
		return RoleRaw, nil
	}
	return 0, fmt.Errorf("unknown stream role %q", s)
}

// StreamConfig describes one negotiated capture stream. Configure may
// adjust any field; after a successful Configure the values are final.
type StreamConfig struct {
	PixelFormat PixelFormat
	Width       int
	Height      int

	// Filled in by Configure.
	Stride    int // bytes per row, including alignment padding
	SizeImage int // total bytes of one frame buffer
}

func (c StreamConfig) String() string {
	return fmt.Sprintf("%dx%d-%s (stride %d)", c.Width, c.Height, c.PixelFormat, c.Stride)
}

// ConfigStatus is the three-way outcome of stream negotiation.
type ConfigStatus int

const (
	ConfigValid ConfigStatus = iota
	ConfigAdjusted
	ConfigInvalid
)

// InvalidOffset marks a plane whose memory offset the driver could not
// determine.
const InvalidOffset int64 = -1

// Plane is one contiguous region of a frame buffer, addressed relative
// to its memory descriptor.
type Plane struct {
	FD     int
	Offset int64
	Length int
}

// PlaneMetadata reports how many bytes of a plane the hardware filled.
type PlaneMetadata struct {
	BytesUsed int
}

// FrameMetadata is produced by the driver when a request completes.
type FrameMetadata struct {
	// Timestamp is the device clock in nanoseconds.
	Timestamp int64
	Sequence  uint32
	Planes    []PlaneMetadata
}

// FrameBuffer is a driver-allocated capture buffer. Planes are fixed for
// the buffer's lifetime; Metadata is only meaningful after the request
// holding the buffer completed.
type FrameBuffer interface {
	Planes() []Plane
	Metadata() FrameMetadata
}

// RequestStatus is reported on completion.
type RequestStatus int

const (
	RequestComplete RequestStatus = iota
	RequestCancelled
)

func (s RequestStatus) String() string {
	if s == RequestCancelled {
		return "cancelled"
	}
	return "complete"
}

// Request binds a buffer to the device queue. A request is queued with
// Camera.Queue and comes back through the completion handler; it may
// then be queued again with the same buffer.
type Request interface {
	// AddBuffer attaches the capture buffer. Exactly one buffer per
	// request is supported.
	AddBuffer(FrameBuffer) error
	Buffers() []FrameBuffer
	Status() RequestStatus
	// SetControls replaces the control values applied when the request
	// is next queued. Keys are canonical control names.
	SetControls(map[string]Value)
	String() string
}

// CompletionHandler is invoked by the driver on an unspecified
// goroutine once per completed or cancelled request.
type CompletionHandler func(Request)

// ControlInfo describes one device control and its reported bounds.
// A Max that is not strictly greater than Min means "no upper bound".
type ControlInfo struct {
	Name string
	Type CtrlType
	Min  Value
	Max  Value
	Def  Value
}

// Camera is a single capture device. Lifecycle: Acquire, Configure,
// AllocateBuffers, Start, Queue..., Stop, Release.
type Camera interface {
	ID() string
	Acquire() error
	Release() error

	// Formats lists pixel formats the device offers for the role.
	Formats(role StreamRole) ([]PixelFormat, error)
	// Configure negotiates the stream; cfg is updated in place when the
	// device adjusts it.
	Configure(cfg *StreamConfig) (ConfigStatus, error)

	// Controls enumerates the device's controls keyed by canonical name.
	Controls() (map[string]ControlInfo, error)

	AllocateBuffers(count int) ([]FrameBuffer, error)
	NewRequest() (Request, error)
	Queue(Request) error

	// SetCompletionHandler registers the completion callback; nil
	// detaches it. Must be called before Start and before Stop.
	// Detaching does not return while an invocation is in flight, and
	// after it no completion reaches the old handler.
	SetCompletionHandler(CompletionHandler)

	Start() error
	Stop() error
}

// Manager owns device enumeration.
type Manager interface {
	Start() error
	Stop() error
	Cameras() []Camera
}
