package capture

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"cam-streamd/pkg/device"
)

// MappedBuffer is the process mapping of one hardware buffer. The bytes
// stay valid from Map until UnmapAll; the registry never hands out a
// mapping after teardown began.
type MappedBuffer struct {
	data []byte
}

func (b *MappedBuffer) Bytes() []byte { return b.data }
func (b *MappedBuffer) Len() int      { return len(b.data) }

// Registry owns the frame-buffer memory mappings. Entries are written
// once during startup, read-only while the camera runs, and drained
// exactly once during teardown under the shutdown lock.
type Registry struct {
	mappings map[device.FrameBuffer]*MappedBuffer
	unmapped bool
}

func NewRegistry() *Registry {
	return &Registry{mappings: make(map[device.FrameBuffer]*MappedBuffer)}
}

// Map memory-maps fb read-only and shared. All planes must share one
// memory descriptor and report a defined offset; the mapped length is
// the maximum of offset+length over all planes.
func (r *Registry) Map(fb device.FrameBuffer) (*MappedBuffer, error) {
	if _, ok := r.mappings[fb]; ok {
		return nil, ErrBufferAlreadyMapped
	}

	planes := fb.Planes()
	if len(planes) == 0 {
		return nil, fmt.Errorf("%w: buffer has no planes", ErrBufferMapping)
	}

	fd := -1
	length := 0
	for _, p := range planes {
		if p.Offset == device.InvalidOffset {
			return nil, ErrInvalidPlaneOffset
		}
		if fd == -1 {
			fd = p.FD
		} else if fd != p.FD {
			return nil, ErrInconsistentPlanes
		}
		if end := int(p.Offset) + p.Length; end > length {
			length = end
		}
	}

	data, err := unix.Mmap(fd, 0, length, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %v", ErrBufferMapping, err)
	}

	mb := &MappedBuffer{data: data}
	r.mappings[fb] = mb

	return mb, nil
}

// Lookup returns the mapping created for fb at startup.
func (r *Registry) Lookup(fb device.FrameBuffer) (*MappedBuffer, bool) {
	mb, ok := r.mappings[fb]
	return mb, ok
}

// MappedBytes is the total size of all live mappings.
func (r *Registry) MappedBytes() int {
	total := 0
	for _, mb := range r.mappings {
		total += len(mb.data)
	}
	return total
}

// UnmapAll releases every mapping. It runs exactly once, during
// teardown; individual munmap failures are collected but do not stop
// the remaining buffers from being unmapped.
func (r *Registry) UnmapAll() error {
	if r.unmapped {
		return errors.New("buffers already unmapped")
	}
	r.unmapped = true

	var errs []error
	for fb, mb := range r.mappings {
		if err := unix.Munmap(mb.data); err != nil {
			errs = append(errs, fmt.Errorf("munmap: %w", err))
		}
		mb.data = nil
		delete(r.mappings, fb)
	}

	return errors.Join(errs...)
}
