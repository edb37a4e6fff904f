//go:build linux

package v4l2drv

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	godevice "github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"cam-streamd/pkg/device"
)

// Camera drives one /dev/video* node. go4vl handles open, capability,
// format and control queries; buffer export and the queue/dequeue cycle
// go through the raw UAPI so completed buffers keep their identity.
type Camera struct {
	path   string
	card   string
	logger *zap.SugaredLogger

	dev *godevice.Device
	fd  uintptr

	handlerMu sync.Mutex
	handler   device.CompletionHandler

	qmu      sync.Mutex
	inflight map[uint32]*request
	buffers  []*frameBuffer

	lastApplied map[string]device.Value

	stopping bool
	done     chan struct{}
}

var _ device.Camera = (*Camera)(nil)

func newCamera(path, card string, logger *zap.SugaredLogger) *Camera {
	return &Camera{
		path:        path,
		card:        card,
		logger:      logger,
		inflight:    make(map[uint32]*request),
		lastApplied: make(map[string]device.Value),
	}
}

func (c *Camera) ID() string {
	if c.card == "" {
		return c.path
	}
	return fmt.Sprintf("%s (%s)", c.path, c.card)
}

func (c *Camera) Acquire() error {
	if c.dev != nil {
		return errors.New("camera already acquired")
	}
	dev, err := godevice.Open(c.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.path, err)
	}
	c.dev = dev
	c.fd = dev.Fd()
	return nil
}

func (c *Camera) Release() error {
	if c.dev == nil {
		return nil
	}
	var errs []error
	for _, b := range c.buffers {
		if err := unix.Close(b.planes[0].FD); err != nil {
			errs = append(errs, fmt.Errorf("close dmabuf %d: %w", b.index, err))
		}
	}
	c.buffers = nil
	if err := c.dev.Close(); err != nil {
		errs = append(errs, err)
	}
	c.dev = nil
	return errors.Join(errs...)
}

// Formats lists the device's offered pixel formats that have canonical
// names. V4L2 exposes one format list regardless of the stream role.
func (c *Camera) Formats(device.StreamRole) ([]device.PixelFormat, error) {
	if c.dev == nil {
		return nil, errors.New("camera not acquired")
	}
	descs, err := v4l2.GetAllFormatDescriptions(c.fd)
	if err != nil {
		return nil, fmt.Errorf("enumerate formats: %w", err)
	}
	var out []device.PixelFormat
	for _, desc := range descs {
		if name, ok := fourccToName[uint32(desc.PixelFormat)]; ok {
			out = append(out, name)
		}
	}
	return out, nil
}

func (c *Camera) Configure(cfg *device.StreamConfig) (device.ConfigStatus, error) {
	if c.dev == nil {
		return device.ConfigInvalid, errors.New("camera not acquired")
	}
	fourcc, ok := nameToFourcc[cfg.PixelFormat]
	if !ok {
		return device.ConfigInvalid, fmt.Errorf("unknown pixel format %q", cfg.PixelFormat)
	}

	if err := c.dev.SetPixFormat(v4l2.PixFormat{
		PixelFormat: fourcc,
		Width:       uint32(cfg.Width),
		Height:      uint32(cfg.Height),
		Field:       v4l2.FieldNone,
	}); err != nil {
		return device.ConfigInvalid, fmt.Errorf("set format: %w", err)
	}

	got, err := c.dev.GetPixFormat()
	if err != nil {
		return device.ConfigInvalid, fmt.Errorf("read back format: %w", err)
	}

	status := device.ConfigValid
	gotName, ok := fourccToName[uint32(got.PixelFormat)]
	if !ok {
		return device.ConfigInvalid, fmt.Errorf("driver selected unsupported format %#x", got.PixelFormat)
	}
	if gotName != cfg.PixelFormat || int(got.Width) != cfg.Width || int(got.Height) != cfg.Height {
		status = device.ConfigAdjusted
	}

	cfg.PixelFormat = gotName
	cfg.Width = int(got.Width)
	cfg.Height = int(got.Height)
	cfg.Stride = int(got.BytesPerLine)
	cfg.SizeImage = int(got.SizeImage)

	return status, nil
}

func (c *Camera) Controls() (map[string]device.ControlInfo, error) {
	if c.dev == nil {
		return nil, errors.New("camera not acquired")
	}
	ctrls, err := v4l2.QueryAllExtControls(c.fd)
	if err != nil {
		return nil, fmt.Errorf("query controls: %w", err)
	}

	out := make(map[string]device.ControlInfo)
	for _, ctrl := range ctrls {
		name, ok := cidToName[uint32(ctrl.ID)]
		if !ok {
			c.logger.Debugf("control %q (%#x) has no canonical name, skipping", ctrl.Name, ctrl.ID)
			continue
		}
		info, ok := controlInfo(name, ctrl)
		if !ok {
			continue
		}
		out[name] = info
	}

	// Frame interval travels via VIDIOC_S_PARM; surfaced as a
	// two-element duration control with no upper bound.
	out[frameDurationControl] = device.ControlInfo{
		Name: frameDurationControl,
		Type: device.TypeInt64,
		Min:  device.Int64Value(0),
		Max:  device.Int64Value(0),
	}

	return out, nil
}

func (c *Camera) AllocateBuffers(count int) ([]device.FrameBuffer, error) {
	if c.dev == nil {
		return nil, errors.New("camera not acquired")
	}
	if count <= 0 {
		return nil, fmt.Errorf("invalid buffer count %d", count)
	}

	rb := v4l2RequestBuffers{
		Count:  uint32(count),
		Type:   bufTypeVideoCapture,
		Memory: memoryMMAP,
	}
	if err := ioctl(c.fd, vidiocReqbufs, unsafe.Pointer(&rb)); err != nil {
		return nil, fmt.Errorf("request %d buffers: %w", count, err)
	}
	if rb.Count == 0 {
		return nil, errors.New("driver granted no buffers")
	}

	out := make([]device.FrameBuffer, 0, rb.Count)
	for i := uint32(0); i < rb.Count; i++ {
		qb := v4l2Buffer{Index: i, Type: bufTypeVideoCapture, Memory: memoryMMAP}
		if err := ioctl(c.fd, vidiocQuerybuf, unsafe.Pointer(&qb)); err != nil {
			return nil, fmt.Errorf("query buffer %d: %w", i, err)
		}
		eb := v4l2ExportBuffer{Type: bufTypeVideoCapture, Index: i, Flags: unix.O_CLOEXEC}
		if err := ioctl(c.fd, vidiocExpbuf, unsafe.Pointer(&eb)); err != nil {
			return nil, fmt.Errorf("export buffer %d: %w", i, err)
		}
		buf := &frameBuffer{
			index: i,
			planes: []device.Plane{{
				FD:     int(eb.FD),
				Offset: 0,
				Length: int(qb.Length),
			}},
		}
		c.buffers = append(c.buffers, buf)
		out = append(out, buf)
	}

	return out, nil
}

func (c *Camera) NewRequest() (device.Request, error) {
	if c.dev == nil {
		return nil, errors.New("camera not acquired")
	}
	return &request{cam: c}, nil
}

func (c *Camera) Queue(req device.Request) error {
	r, ok := req.(*request)
	if !ok {
		return errors.New("request was not created by this driver")
	}
	if r.buf == nil {
		return errors.New("request holds no buffer")
	}

	c.qmu.Lock()
	defer c.qmu.Unlock()
	if c.stopping || c.dev == nil {
		return errors.New("camera stopped")
	}

	c.applyControls(r.controls)

	qb := v4l2Buffer{Index: r.buf.index, Type: bufTypeVideoCapture, Memory: memoryMMAP}
	if err := ioctl(c.fd, vidiocQbuf, unsafe.Pointer(&qb)); err != nil {
		return fmt.Errorf("queue buffer %d: %w", r.buf.index, err)
	}
	c.inflight[r.buf.index] = r

	return nil
}

// applyControls pushes changed control values to the device. V4L2
// controls are global rather than per-request, so only the delta since
// the last application is written.
func (c *Camera) applyControls(vals map[string]device.Value) {
	for name, val := range vals {
		if last, ok := c.lastApplied[name]; ok && reflect.DeepEqual(last, val) {
			continue
		}
		if name == frameDurationControl {
			c.applyFrameDuration(val)
			c.lastApplied[name] = val
			continue
		}
		cid, ok := nameToCID[name]
		if !ok {
			c.logger.Warnf("control %s cannot be applied by this driver", name)
			continue
		}
		v := ctrlValue(name, val)
		if err := c.dev.SetControlValue(v4l2.CtrlID(cid), v4l2.CtrlValue(v)); err != nil {
			c.logger.Warnf("set control %s to %d: %s", name, v, err)
			continue
		}
		c.lastApplied[name] = val
	}
}

func (c *Camera) applyFrameDuration(val device.Value) {
	durations := val.IntArray()
	if len(durations) == 0 {
		return
	}
	// Duration is in microseconds; time-per-frame is a rational second.
	parm := v4l2Streamparm{Type: bufTypeVideoCapture}
	parm.Capture.TimePerFrame = v4l2Fract{
		Numerator:   uint32(durations[0]),
		Denominator: 1000000,
	}
	if err := ioctl(c.fd, vidiocSParm, unsafe.Pointer(&parm)); err != nil {
		c.logger.Warnf("set frame duration %dus: %s", durations[0], err)
	}
}

// SetCompletionHandler installs h; nil detaches. Detaching waits for
// an in-flight delivery to return, so afterwards no completion can
// reach the old handler.
func (c *Camera) SetCompletionHandler(h device.CompletionHandler) {
	c.handlerMu.Lock()
	c.handler = h
	c.handlerMu.Unlock()
}

// invokeHandler delivers r while holding handlerMu. Deliveries and
// handler changes serialize on that lock; without it a delivery fetched
// before a detach could land after teardown already owns the shutdown
// lock and is joining the dequeue goroutine.
func (c *Camera) invokeHandler(r *request) bool {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	if c.handler == nil {
		return false
	}
	c.handler(r)
	return true
}

func (c *Camera) Start() error {
	if c.dev == nil {
		return errors.New("camera not acquired")
	}
	typ := uint32(bufTypeVideoCapture)
	if err := ioctl(c.fd, vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("stream on: %w", err)
	}
	c.stopping = false
	c.done = make(chan struct{})
	go c.dequeueLoop()
	return nil
}

// Stop turns streaming off and surfaces every still-queued request as
// cancelled, mirroring how the device cancels all outstanding work at
// once.
func (c *Camera) Stop() error {
	if c.dev == nil || c.done == nil {
		return nil
	}

	c.qmu.Lock()
	c.stopping = true
	c.qmu.Unlock()

	typ := uint32(bufTypeVideoCapture)
	err := ioctl(c.fd, vidiocStreamoff, unsafe.Pointer(&typ))
	<-c.done
	c.done = nil

	c.qmu.Lock()
	pending := make([]*request, 0, len(c.inflight))
	for idx, r := range c.inflight {
		delete(c.inflight, idx)
		pending = append(pending, r)
	}
	c.qmu.Unlock()

	for _, r := range pending {
		r.status = device.RequestCancelled
		if !c.invokeHandler(r) {
			c.logger.Debugf("%s cancelled during stop", r)
		}
	}

	if err != nil {
		return fmt.Errorf("stream off: %w", err)
	}
	return nil
}

func (c *Camera) dequeueLoop() {
	defer close(c.done)

	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
	for {
		c.qmu.Lock()
		stopping := c.stopping
		c.qmu.Unlock()
		if stopping {
			return
		}

		n, err := unix.Poll(fds, 200)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			c.logger.Errorf("poll %s: %s", c.path, err)
			return
		}
		if n == 0 {
			continue
		}

		db := v4l2Buffer{Type: bufTypeVideoCapture, Memory: memoryMMAP}
		if err := ioctl(c.fd, vidiocDqbuf, unsafe.Pointer(&db)); err != nil {
			if err == unix.EAGAIN {
				continue
			}
			c.qmu.Lock()
			stopping := c.stopping
			c.qmu.Unlock()
			if !stopping {
				c.logger.Errorf("dequeue on %s: %s", c.path, err)
			}
			return
		}

		c.qmu.Lock()
		r, ok := c.inflight[db.Index]
		delete(c.inflight, db.Index)
		c.qmu.Unlock()
		if !ok {
			c.logger.Errorf("dequeued unknown buffer %d", db.Index)
			continue
		}

		r.status = device.RequestComplete
		if db.Flags&bufFlagError != 0 {
			r.status = device.RequestCancelled
		}
		r.buf.md = device.FrameMetadata{
			Timestamp: db.Timestamp.Sec*1e9 + db.Timestamp.Usec*1e3,
			Sequence:  db.Sequence,
			Planes:    []device.PlaneMetadata{{BytesUsed: int(db.BytesUsed)}},
		}

		if !c.invokeHandler(r) {
			c.logger.Debugf("%s completed with no handler attached", r)
		}
	}
}
