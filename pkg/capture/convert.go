package capture

import (
	"fmt"
	"math"

	"cam-streamd/pkg/device"
)

// Coercion from loosely typed configuration values into the control's
// declared type. An impossible conversion yields the none Value, which
// ValidateAndStage rejects as a type mismatch.

func intToValue(n int64, t device.CtrlType) device.Value {
	switch t {
	case device.TypeInt32:
		return device.Int32Value(int32(n))
	case device.TypeInt64:
		return device.Int64Value(n)
	case device.TypeFloat:
		return device.FloatValue(float64(n))
	}
	return device.Value{}
}

func floatToValue(f float64, t device.CtrlType) device.Value {
	switch t {
	case device.TypeFloat:
		return device.FloatValue(f)
	case device.TypeInt32:
		return device.Int32Value(int32(math.Round(f)))
	case device.TypeInt64:
		return device.Int64Value(int64(math.Round(f)))
	}
	return device.Value{}
}

// boolToValue also covers devices that declare switch controls as
// integers (0 = off, 1 = on).
func boolToValue(b bool, t device.CtrlType) device.Value {
	switch t {
	case device.TypeBool:
		return device.BoolValue(b)
	case device.TypeInt32, device.TypeInt64:
		n := int64(0)
		if b {
			n = 1
		}
		return intToValue(n, t)
	}
	return device.Value{}
}

func intsToValue(ns []int64, t device.CtrlType) device.Value {
	switch t {
	case device.TypeInt32:
		out := make([]int32, len(ns))
		for i, n := range ns {
			out[i] = int32(n)
		}
		return device.Int32ArrayValue(out)
	case device.TypeInt64:
		return device.Int64ArrayValue(ns)
	case device.TypeRectangle:
		if len(ns) != 4 {
			return device.Value{}
		}
		return device.RectValue(device.Rectangle{
			X: int32(ns[0]), Y: int32(ns[1]),
			Width: uint32(ns[2]), Height: uint32(ns[3]),
		})
	case device.TypeSize:
		if len(ns) != 2 {
			return device.Value{}
		}
		return device.SizeValue(device.Size{Width: uint32(ns[0]), Height: uint32(ns[1])})
	}
	return device.Value{}
}

// Enumerated mode controls take well-known strings in configuration.
// The tables mirror the driver layer's enum values.

var awbModes = map[string]int64{
	"auto":         0,
	"incandescent": 1,
	"tungsten":     2,
	"fluorescent":  3,
	"indoor":       4,
	"daylight":     5,
	"cloudy":       6,
	"custom":       7,
}

var aeMeteringModes = map[string]int64{
	"centre_weighted": 0,
	"spot":            1,
	"matrix":          2,
	"custom":          3,
}

var aeConstraintModes = map[string]int64{
	"normal":    0,
	"highlight": 1,
	"shadows":   2,
	"custom":    3,
}

var aeExposureModes = map[string]int64{
	"normal": 0,
	"short":  1,
	"long":   2,
	"custom": 3,
}

func modeToValue(table map[string]int64, mode string, t device.CtrlType) (device.Value, error) {
	n, ok := table[mode]
	if !ok {
		return device.Value{}, fmt.Errorf("invalid mode %q", mode)
	}
	return intToValue(n, t), nil
}
