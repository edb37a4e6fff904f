//go:build linux

package v4l2drv

import "cam-streamd/pkg/device"

func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// nameToFourcc maps canonical pixel format names to V4L2 fourcc codes.
// Only uncompressed formats appear here; compressed streams cannot be
// republished by the assembler.
var nameToFourcc = map[device.PixelFormat]uint32{
	"RGB24":  fourcc('R', 'G', 'B', '3'),
	"BGR24":  fourcc('B', 'G', 'R', '3'),
	"XBGR32": fourcc('X', 'R', '2', '4'),
	"RGB565": fourcc('R', 'G', 'B', 'P'),
	"YUYV":   fourcc('Y', 'U', 'Y', 'V'),
	"UYVY":   fourcc('U', 'Y', 'V', 'Y'),
	"GREY":   fourcc('G', 'R', 'E', 'Y'),
	"Y16":    fourcc('Y', '1', '6', ' '),
}

var fourccToName = func() map[uint32]device.PixelFormat {
	out := make(map[uint32]device.PixelFormat, len(nameToFourcc))
	for name, fcc := range nameToFourcc {
		out[fcc] = name
	}
	return out
}()
