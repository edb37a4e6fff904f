package capture

import (
	"errors"
	"slices"

	"golang.org/x/sys/unix"

	"cam-streamd/pkg/device"
	"cam-streamd/pkg/publish"
)

// The fakes below implement the device boundary in-process. Buffers are
// backed by memfds so the registry's real mmap path runs in tests.

type memBuffer struct {
	planes []device.Plane
	md     device.FrameMetadata
}

func newMemBuffer(size int) (*memBuffer, error) {
	fd, err := unix.MemfdCreate("capture-test", 0)
	if err != nil {
		return nil, err
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &memBuffer{
		planes: []device.Plane{{FD: fd, Offset: 0, Length: size}},
	}, nil
}

// fill writes data into the backing memory at off.
func (b *memBuffer) fill(data []byte, off int64) error {
	_, err := unix.Pwrite(b.planes[0].FD, data, off)
	return err
}

func (b *memBuffer) Planes() []device.Plane         { return b.planes }
func (b *memBuffer) Metadata() device.FrameMetadata { return b.md }

type fakeRequest struct {
	buf      device.FrameBuffer
	status   device.RequestStatus
	controls map[string]device.Value
}

func (r *fakeRequest) AddBuffer(fb device.FrameBuffer) error {
	if r.buf != nil {
		return errors.New("request already holds a buffer")
	}
	r.buf = fb
	return nil
}

func (r *fakeRequest) Buffers() []device.FrameBuffer {
	if r.buf == nil {
		return nil
	}
	return []device.FrameBuffer{r.buf}
}

func (r *fakeRequest) Status() device.RequestStatus             { return r.status }
func (r *fakeRequest) SetControls(vals map[string]device.Value) { r.controls = vals }
func (r *fakeRequest) String() string                           { return "fake-request" }

type fakeCamera struct {
	id       string
	formats  []device.PixelFormat
	controls map[string]device.ControlInfo

	// configure behavior
	adjustStride int
	rejectConfig bool

	bufSize     int
	failAcquire bool

	acquired bool
	started  bool
	released bool

	buffers []*memBuffer
	queued  []*fakeRequest
	handler device.CompletionHandler
}

func newFakeCamera(id string) *fakeCamera {
	return &fakeCamera{
		id:      id,
		formats: []device.PixelFormat{"YUYV", "RGB24"},
		controls: map[string]device.ControlInfo{
			"ExposureTime": {
				Name: "ExposureTime", Type: device.TypeInt32,
				Min: device.Int32Value(100), Max: device.Int32Value(1000000),
				Def: device.Int32Value(20000),
			},
			"Brightness": {
				Name: "Brightness", Type: device.TypeInt32,
				Min: device.Int32Value(-64), Max: device.Int32Value(64),
				Def: device.Int32Value(0),
			},
			"AeEnable": {
				Name: "AeEnable", Type: device.TypeBool,
				Min: device.BoolValue(false), Max: device.BoolValue(true),
				Def: device.BoolValue(true),
			},
		},
	}
}

func (c *fakeCamera) ID() string { return c.id }

func (c *fakeCamera) Acquire() error {
	if c.failAcquire {
		return errors.New("device busy")
	}
	c.acquired = true
	return nil
}

func (c *fakeCamera) Release() error {
	for _, b := range c.buffers {
		unix.Close(b.planes[0].FD)
	}
	c.buffers = nil
	c.acquired = false
	c.released = true
	return nil
}

func (c *fakeCamera) Formats(device.StreamRole) ([]device.PixelFormat, error) {
	return c.formats, nil
}

func (c *fakeCamera) Configure(cfg *device.StreamConfig) (device.ConfigStatus, error) {
	if c.rejectConfig {
		return device.ConfigInvalid, errors.New("unsupported resolution")
	}
	status := device.ConfigValid
	cfg.Stride = cfg.Width * 2
	if c.adjustStride > 0 {
		cfg.Stride = c.adjustStride
		status = device.ConfigAdjusted
	}
	cfg.SizeImage = cfg.Stride * cfg.Height
	c.bufSize = cfg.SizeImage
	return status, nil
}

func (c *fakeCamera) Controls() (map[string]device.ControlInfo, error) {
	return c.controls, nil
}

func (c *fakeCamera) AllocateBuffers(count int) ([]device.FrameBuffer, error) {
	out := make([]device.FrameBuffer, count)
	for i := range out {
		b, err := newMemBuffer(c.bufSize)
		if err != nil {
			return nil, err
		}
		c.buffers = append(c.buffers, b)
		out[i] = b
	}
	return out, nil
}

func (c *fakeCamera) NewRequest() (device.Request, error) {
	return &fakeRequest{}, nil
}

func (c *fakeCamera) Queue(req device.Request) error {
	r, ok := req.(*fakeRequest)
	if !ok {
		return errors.New("foreign request")
	}
	c.queued = append(c.queued, r)
	return nil
}

func (c *fakeCamera) SetCompletionHandler(h device.CompletionHandler) { c.handler = h }

func (c *fakeCamera) Start() error {
	c.started = true
	return nil
}

func (c *fakeCamera) Stop() error {
	c.started = false
	return nil
}

// complete pops the oldest queued request and delivers it through the
// completion handler with the given status and metadata.
func (c *fakeCamera) complete(status device.RequestStatus, md device.FrameMetadata) error {
	if len(c.queued) == 0 {
		return errors.New("nothing queued")
	}
	req := c.queued[0]
	c.queued = c.queued[1:]

	req.status = status
	if b, ok := req.buf.(*memBuffer); ok {
		b.md = md
	}
	if c.handler != nil {
		c.handler(req)
	}
	return nil
}

type fakeManager struct {
	cams    []device.Camera
	started bool
}

func (m *fakeManager) Start() error {
	m.started = true
	return nil
}

func (m *fakeManager) Stop() error {
	m.started = false
	return nil
}

func (m *fakeManager) Cameras() []device.Camera { return slices.Clone(m.cams) }

type captureSink struct {
	frames []publish.Frame
	err    error
}

func (s *captureSink) Publish(frame publish.Frame) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, frame)
	return nil
}
