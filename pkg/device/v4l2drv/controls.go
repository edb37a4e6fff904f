//go:build linux

package v4l2drv

import (
	"math"

	"github.com/vladimirvivien/go4vl/v4l2"

	"cam-streamd/pkg/device"
)

// V4L2 control type codes (V4L2_CTRL_TYPE_*).
const (
	ctrlTypeInteger     = 1
	ctrlTypeBoolean     = 2
	ctrlTypeMenu        = 3
	ctrlTypeButton      = 4
	ctrlTypeInteger64   = 5
	ctrlTypeCtrlClass   = 6
	ctrlTypeString      = 7
	ctrlTypeBitmask     = 8
	ctrlTypeIntegerMenu = 9
)

// V4L2 control IDs (V4L2_CID_*) this driver maps onto canonical
// control names.
const (
	cidBrightness       = 0x00980900
	cidContrast         = 0x00980901
	cidSaturation       = 0x00980902
	cidAutoWhiteBalance = 0x0098090c
	cidGain             = 0x00980913
	cidSharpness        = 0x0098091b
	cidExposureAuto     = 0x009a0901
	cidExposureAbsolute = 0x009a0902
)

// V4L2_EXPOSURE_* menu entries for V4L2_CID_EXPOSURE_AUTO.
const (
	exposureAuto   = 0
	exposureManual = 1
)

// frameDurationControl is synthesized by the driver: V4L2 exposes the
// frame interval through VIDIOC_S_PARM, not as a control.
const frameDurationControl = "FrameDurationLimits"

var cidToName = map[uint32]string{
	cidBrightness:       "Brightness",
	cidContrast:         "Contrast",
	cidSaturation:       "Saturation",
	cidAutoWhiteBalance: "AwbEnable",
	cidGain:             "AnalogueGain",
	cidSharpness:        "Sharpness",
	cidExposureAuto:     "AeEnable",
	cidExposureAbsolute: "ExposureTime",
}

var nameToCID = func() map[string]uint32 {
	out := make(map[string]uint32, len(cidToName))
	for cid, name := range cidToName {
		out[name] = cid
	}
	return out
}()

// controlInfo converts one queried V4L2 control into the boundary
// shape, or reports false for control classes, buttons and other
// controls that carry no stageable value.
func controlInfo(name string, ctrl v4l2.Control) (device.ControlInfo, bool) {
	// V4L2_CID_EXPOSURE_AUTO is a menu control, but the canonical
	// AeEnable surface is a switch: declared as bool here, translated
	// back to the menu entry when applied.
	if uint32(ctrl.ID) == cidExposureAuto {
		return device.ControlInfo{
			Name: name,
			Type: device.TypeBool,
			Min:  device.BoolValue(false),
			Max:  device.BoolValue(true),
			Def:  device.BoolValue(ctrl.Default == exposureAuto),
		}, true
	}

	switch uint32(ctrl.Type) {
	case ctrlTypeInteger, ctrlTypeMenu, ctrlTypeIntegerMenu:
		return device.ControlInfo{
			Name: name,
			Type: device.TypeInt32,
			Min:  device.Int32Value(ctrl.Minimum),
			Max:  device.Int32Value(ctrl.Maximum),
			Def:  device.Int32Value(ctrl.Default),
		}, true
	case ctrlTypeInteger64:
		return device.ControlInfo{
			Name: name,
			Type: device.TypeInt64,
			Min:  device.Int64Value(int64(ctrl.Minimum)),
			Max:  device.Int64Value(int64(ctrl.Maximum)),
			Def:  device.Int64Value(int64(ctrl.Default)),
		}, true
	case ctrlTypeBoolean:
		return device.ControlInfo{
			Name: name,
			Type: device.TypeBool,
			Min:  device.BoolValue(false),
			Max:  device.BoolValue(true),
			Def:  device.BoolValue(ctrl.Default != 0),
		}, true
	}
	return device.ControlInfo{}, false
}

// ctrlValue flattens a staged Value to the int32 the V4L2 control
// interface takes.
func ctrlValue(name string, val device.Value) int32 {
	switch val.Type() {
	case device.TypeBool:
		if name == "AeEnable" {
			// Enabling auto exposure selects the AUTO menu entry,
			// disabling it selects MANUAL.
			if val.Bool() {
				return exposureAuto
			}
			return exposureManual
		}
		if val.Bool() {
			return 1
		}
		return 0
	case device.TypeInt32, device.TypeInt64:
		return int32(val.Int())
	case device.TypeFloat:
		return int32(math.Round(val.Float()))
	}
	return 0
}
