package capture

import (
	"fmt"
	"maps"

	"go.uber.org/zap"

	"cam-streamd/pkg/device"
)

// controlExtents lists the controls this version knows how to validate,
// with the expected element count for array-valued controls (0 means
// scalar or device-sized). Controls the device reports under any other
// name are skipped at declaration time.
var controlExtents = map[string]int{
	"AeEnable":               0,
	"AeMeteringMode":         0,
	"AeConstraintMode":       0,
	"AeExposureMode":         0,
	"ExposureValue":          0,
	"ExposureTime":           0,
	"AnalogueGain":           0,
	"Brightness":             0,
	"Contrast":               0,
	"Saturation":             0,
	"Sharpness":              0,
	"AwbEnable":              0,
	"AwbMode":                0,
	"ColourGains":            2,
	"FrameDurationLimits":    2,
	"NoiseReductionMode":     0,
	"ScalerCrop":             0,
	"ColourCorrectionMatrix": 9,
}

// ControlSpec is a declared control together with its expected extent.
type ControlSpec struct {
	device.ControlInfo
	Extent int
}

// Validator checks user-requested control values against the bounds the
// device reported and keeps the set of staged values that every future
// request is queued with. Staging happens during startup only; after
// that the staged map is read-only, so no lock guards it.
type Validator struct {
	specs  map[string]ControlSpec
	staged map[string]device.Value
	logger *zap.SugaredLogger
}

func NewValidator(logger *zap.SugaredLogger) *Validator {
	return &Validator{
		specs:  make(map[string]ControlSpec),
		staged: make(map[string]device.Value),
		logger: logger,
	}
}

// Declare enumerates every control the camera reports. Controls without
// an extent table entry are skipped with a warning rather than failing,
// so cameras newer than this version keep working.
func (v *Validator) Declare(cam device.Camera) error {
	infos, err := cam.Controls()
	if err != nil {
		return fmt.Errorf("enumerate controls: %w", err)
	}

	v.logger.Info("available controls:")
	for name, info := range infos {
		extent, ok := controlExtents[name]
		if !ok {
			v.logger.Warnf("    %s: not handled by this version, skipping", name)
			continue
		}
		if info.Min.Elems() != info.Max.Elems() {
			return fmt.Errorf("control %s: minimum and maximum element counts differ", name)
		}
		v.specs[name] = ControlSpec{ControlInfo: info, Extent: extent}
		v.logger.Infof("    %s: %s [%s..%s] (default %s)",
			name, info.Type, info.Min, info.Max, info.Def)
	}

	return nil
}

// Spec returns the declared spec for a control name.
func (v *Validator) Spec(name string) (ControlSpec, bool) {
	spec, ok := v.specs[name]
	return spec, ok
}

// Specs returns a copy of all declared control specs.
func (v *Validator) Specs() map[string]ControlSpec {
	return maps.Clone(v.specs)
}

// ValidateAndStage checks val against the declared spec for name and,
// on success, stages it for all subsequently queued requests. A control
// the device did not declare is rejected before any bound data is
// touched. On failure the previously staged value is left unchanged.
func (v *Validator) ValidateAndStage(name string, val device.Value) error {
	spec, ok := v.specs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownControl, name)
	}

	if val.IsNone() {
		return fmt.Errorf("%w: %s: value has no type", ErrTypeMismatch, name)
	}
	if val.Type() != spec.Type {
		return fmt.Errorf("%w: %s: expected %s, got %s",
			ErrTypeMismatch, name, spec.Type, val.Type())
	}

	if val.IsArray() && spec.Extent > 0 && val.Elems() != spec.Extent {
		return fmt.Errorf("%w: %s: expected %d elements, got %d",
			ErrCardinalityMismatch, name, spec.Extent, val.Elems())
	}

	// A maximum that is not strictly greater than the minimum means the
	// control is unbounded above; some devices report 0 there.
	if valueBelow(val, spec.Min) ||
		(valueAbove(spec.Max, spec.Min) && valueAbove(val, spec.Max)) {
		return fmt.Errorf("%w: %s: %s outside [%s..%s]",
			ErrOutOfRange, name, val, spec.Min, spec.Max)
	}

	v.staged[name] = val

	return nil
}

// Staged returns a snapshot of the staged control values.
func (v *Validator) Staged() map[string]device.Value {
	return maps.Clone(v.staged)
}

// valueBelow reports whether any element of val is below the bound.
// Scalar bounds apply to every element; non-numeric values are never
// range checked.
func valueBelow(val, bound device.Value) bool {
	vs, bs := val.Numbers(), bound.Numbers()
	if vs == nil || bs == nil {
		return false
	}
	for i, x := range vs {
		b := bs[0]
		if len(bs) > 1 && i < len(bs) {
			b = bs[i]
		}
		if x < b {
			return true
		}
	}
	return false
}

// valueAbove reports whether any element of val exceeds the bound.
func valueAbove(val, bound device.Value) bool {
	vs, bs := val.Numbers(), bound.Numbers()
	if vs == nil || bs == nil {
		return false
	}
	for i, x := range vs {
		b := bs[0]
		if len(bs) > 1 && i < len(bs) {
			b = bs[i]
		}
		if x > b {
			return true
		}
	}
	return false
}
