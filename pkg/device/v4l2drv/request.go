//go:build linux

package v4l2drv

import (
	"errors"
	"fmt"

	"cam-streamd/pkg/device"
)

type frameBuffer struct {
	index  uint32
	planes []device.Plane
	md     device.FrameMetadata
}

func (b *frameBuffer) Planes() []device.Plane         { return b.planes }
func (b *frameBuffer) Metadata() device.FrameMetadata { return b.md }

type request struct {
	cam      *Camera
	buf      *frameBuffer
	status   device.RequestStatus
	controls map[string]device.Value
}

func (r *request) AddBuffer(fb device.FrameBuffer) error {
	if r.buf != nil {
		return errors.New("request already holds a buffer")
	}
	b, ok := fb.(*frameBuffer)
	if !ok {
		return errors.New("buffer was not allocated by this driver")
	}
	r.buf = b
	return nil
}

func (r *request) Buffers() []device.FrameBuffer {
	if r.buf == nil {
		return nil
	}
	return []device.FrameBuffer{r.buf}
}

func (r *request) Status() device.RequestStatus { return r.status }

func (r *request) SetControls(vals map[string]device.Value) { r.controls = vals }

func (r *request) String() string {
	if r.buf == nil {
		return "request(unbound)"
	}
	return fmt.Sprintf("request(buffer %d)", r.buf.index)
}
