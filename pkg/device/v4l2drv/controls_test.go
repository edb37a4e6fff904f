//go:build linux

package v4l2drv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimirvivien/go4vl/v4l2"

	"cam-streamd/pkg/device"
)

func TestControlInfoIntegerControl(t *testing.T) {
	info, ok := controlInfo("Brightness", v4l2.Control{
		ID: cidBrightness, Type: ctrlTypeInteger,
		Minimum: -64, Maximum: 64, Default: 0,
	})
	require.True(t, ok)
	assert.Equal(t, device.TypeInt32, info.Type)
	assert.Equal(t, int64(-64), info.Min.Int())
	assert.Equal(t, int64(64), info.Max.Int())
}

func TestControlInfoExposureAutoIsBool(t *testing.T) {
	// The kernel exposes exposure auto as a menu control; the canonical
	// AeEnable control is a switch.
	info, ok := controlInfo("AeEnable", v4l2.Control{
		ID: cidExposureAuto, Type: ctrlTypeMenu,
		Minimum: 0, Maximum: 3, Default: exposureAuto,
	})
	require.True(t, ok)
	assert.Equal(t, device.TypeBool, info.Type)
	assert.True(t, info.Def.Bool())

	info, ok = controlInfo("AeEnable", v4l2.Control{
		ID: cidExposureAuto, Type: ctrlTypeMenu,
		Minimum: 0, Maximum: 3, Default: exposureManual,
	})
	require.True(t, ok)
	assert.False(t, info.Def.Bool())
}

func TestControlInfoSkipsValuelessControls(t *testing.T) {
	_, ok := controlInfo("DoWhiteBalance", v4l2.Control{Type: ctrlTypeButton})
	assert.False(t, ok)
	_, ok = controlInfo("CameraClass", v4l2.Control{Type: ctrlTypeCtrlClass})
	assert.False(t, ok)
}

func TestCtrlValueAeEnableSelectsMenuEntry(t *testing.T) {
	assert.Equal(t, int32(exposureAuto), ctrlValue("AeEnable", device.BoolValue(true)))
	assert.Equal(t, int32(exposureManual), ctrlValue("AeEnable", device.BoolValue(false)))

	// Plain bool controls stay 0/1.
	assert.Equal(t, int32(1), ctrlValue("AwbEnable", device.BoolValue(true)))
	assert.Equal(t, int32(0), ctrlValue("AwbEnable", device.BoolValue(false)))
}

func TestCtrlValueNumericControls(t *testing.T) {
	assert.Equal(t, int32(20000), ctrlValue("ExposureTime", device.Int32Value(20000)))
	assert.Equal(t, int32(3), ctrlValue("AnalogueGain", device.FloatValue(2.6)))
}
