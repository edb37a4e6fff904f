//go:build linux

package v4l2drv

// Raw V4L2 UAPI plumbing for the buffer/request cycle. go4vl's
// high-level streaming loop owns its buffers internally, so the
// export/queue/dequeue path talks to the kernel directly.
// https://github.com/torvalds/linux/blob/master/include/uapi/linux/videodev2.h

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request codes for the 64-bit struct layouts.
const (
	vidiocReqbufs   = 0xc0145608
	vidiocQuerybuf  = 0xc0585609
	vidiocQbuf      = 0xc058560f
	vidiocExpbuf    = 0xc0405610
	vidiocDqbuf     = 0xc0585611
	vidiocStreamon  = 0x40045612
	vidiocStreamoff = 0x40045613
	vidiocSParm     = 0xc0cc5616
)

const (
	bufTypeVideoCapture = 1
	memoryMMAP          = 1

	bufFlagError = 0x0040
)

type v4l2Timecode struct {
	Type     uint32
	Flags    uint32
	Frames   uint8
	Seconds  uint8
	Minutes  uint8
	Hours    uint8
	Userbits [4]uint8
}

type v4l2Buffer struct {
	Index     uint32
	Type      uint32
	BytesUsed uint32
	Flags     uint32
	Field     uint32
	_         uint32
	Timestamp unix.Timeval
	Timecode  v4l2Timecode
	Sequence  uint32
	Memory    uint32
	M         uint32 // union: mmap offset / userptr / fd
	_         uint32
	Length    uint32
	Reserved2 uint32
	RequestFD int32
	_         uint32
}

type v4l2RequestBuffers struct {
	Count        uint32
	Type         uint32
	Memory       uint32
	Capabilities uint32
	Flags        uint8
	Reserved     [3]uint8
}

type v4l2ExportBuffer struct {
	Type     uint32
	Index    uint32
	Plane    uint32
	Flags    uint32
	FD       int32
	Reserved [11]uint32
}

type v4l2Fract struct {
	Numerator   uint32
	Denominator uint32
}

type v4l2Captureparm struct {
	Capability   uint32
	CaptureMode  uint32
	TimePerFrame v4l2Fract
	ExtendedMode uint32
	ReadBuffers  uint32
	_            [176]byte
}

type v4l2Streamparm struct {
	Type    uint32
	Capture v4l2Captureparm
}

func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}
