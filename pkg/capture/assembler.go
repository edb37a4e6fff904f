package capture

import (
	"fmt"
	"time"

	"cam-streamd/pkg/clock"
	"cam-streamd/pkg/device"
	"cam-streamd/pkg/publish"
)

// formatInfo describes the raw (uncompressed) pixel formats the
// assembler can repack. Formats outside this table cannot be published
// and drop the frame.
type formatInfo struct {
	bytesPerPixel int
	bigEndian     bool
	encoding      string
}

var rawFormats = map[device.PixelFormat]formatInfo{
	"RGB24":  {3, false, "rgb8"},
	"BGR24":  {3, false, "bgr8"},
	"XBGR32": {4, false, "bgra8"},
	"RGB565": {2, false, "rgb565"},
	"YUYV":   {2, false, "yuv422_yuy2"},
	"UYVY":   {2, false, "yuv422"},
	"GREY":   {1, false, "mono8"},
	"Y16":    {2, false, "mono16"},
}

// SupportedFormats lists the formats the publishing side understands,
// used to intersect with what the device offers.
func SupportedFormats() []device.PixelFormat {
	out := make([]device.PixelFormat, 0, len(rawFormats))
	for f := range rawFormats {
		out = append(out, f)
	}
	return out
}

// Assembler turns a completed buffer into a packed image payload plus a
// header. With stride removal enabled, each output row is exactly
// width*bytes-per-pixel bytes, dropping hardware row alignment padding.
type Assembler struct {
	cfg          device.StreamConfig
	frameID      string
	removeStride bool

	// When useWallClock is set, the offset between the wall clock and
	// the device clock is captured on the first frame and added to every
	// device timestamp, keeping inter-frame deltas faithful to the
	// device clock.
	useWallClock bool
	wall         clock.Source
	offsetKnown  bool
	offset       time.Duration
}

func NewAssembler(cfg device.StreamConfig, frameID string, removeStride, useWallClock bool, wall clock.Source) *Assembler {
	if wall == nil {
		wall = clock.NewSystem()
	}
	return &Assembler{
		cfg:          cfg,
		frameID:      frameID,
		removeStride: removeStride,
		useWallClock: useWallClock,
		wall:         wall,
	}
}

// Assemble builds the publishable frame from a completed buffer.
func (a *Assembler) Assemble(buf *MappedBuffer, md device.FrameMetadata) (publish.Frame, error) {
	fi, ok := rawFormats[a.cfg.PixelFormat]
	if !ok {
		return publish.Frame{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, a.cfg.PixelFormat)
	}

	bytesUsed := 0
	for _, p := range md.Planes {
		bytesUsed += p.BytesUsed
	}

	stamp := time.Unix(0, md.Timestamp)
	if a.useWallClock {
		if !a.offsetKnown {
			a.offset = a.wall.Now().Sub(stamp)
			a.offsetKnown = true
		}
		stamp = stamp.Add(a.offset)
	}

	img := &publish.Image{
		Width:     a.cfg.Width,
		Height:    a.cfg.Height,
		BigEndian: fi.bigEndian,
		Encoding:  fi.encoding,
	}

	if !a.removeStride {
		if bytesUsed != buf.Len() {
			return publish.Frame{}, fmt.Errorf("%w: consumed %d bytes, mapped %d",
				ErrByteCountMismatch, bytesUsed, buf.Len())
		}
		img.Stride = a.cfg.Stride
		img.Data = append([]byte(nil), buf.Bytes()...)
	} else {
		rowLen := a.cfg.Width * fi.bytesPerPixel
		if (a.cfg.Height-1)*a.cfg.Stride+rowLen > buf.Len() {
			return publish.Frame{}, fmt.Errorf("%w: %d rows of stride %d exceed mapped %d bytes",
				ErrByteCountMismatch, a.cfg.Height, a.cfg.Stride, buf.Len())
		}
		src := buf.Bytes()
		img.Stride = rowLen
		img.Data = make([]byte, a.cfg.Height*rowLen)
		for i := 0; i < a.cfg.Height; i++ {
			copy(img.Data[i*rowLen:(i+1)*rowLen], src[i*a.cfg.Stride:i*a.cfg.Stride+rowLen])
		}
	}

	return publish.Frame{
		Header: publish.Header{
			FrameID:   a.frameID,
			Timestamp: stamp,
			Sequence:  md.Sequence,
		},
		Image: img,
	}, nil
}
