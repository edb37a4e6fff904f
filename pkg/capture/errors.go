package capture

import (
	"errors"
	"fmt"
)

// Error categories. Configuration, acquisition and buffer mapping
// failures abort startup; control validation and frame assembly
// failures are contained and the capture loop keeps running.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrDeviceAcquisition = errors.New("device acquisition error")
	ErrBufferMapping     = errors.New("buffer mapping error")
	ErrFrameAssembly     = errors.New("frame assembly error")
)

// Buffer registry failures.
var (
	ErrInvalidPlaneOffset  = fmt.Errorf("%w: plane reports no offset", ErrBufferMapping)
	ErrInconsistentPlanes  = fmt.Errorf("%w: plane descriptors differ", ErrBufferMapping)
	ErrBufferAlreadyMapped = fmt.Errorf("%w: buffer already mapped", ErrBufferMapping)
)

// Control validation failures. Each rejects a single control update;
// the previously staged value, if any, stays in effect.
var (
	ErrUnknownControl      = errors.New("unknown or unsupported control")
	ErrTypeMismatch        = errors.New("control type mismatch")
	ErrCardinalityMismatch = errors.New("control cardinality mismatch")
	ErrOutOfRange          = errors.New("control value out of range")
)

// Frame assembly failures; the offending frame is dropped.
var (
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported pixel format", ErrFrameAssembly)
	ErrByteCountMismatch = fmt.Errorf("%w: consumed byte count mismatch", ErrFrameAssembly)
)
