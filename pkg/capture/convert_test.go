package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cam-streamd/pkg/device"
)

func TestIntToValue(t *testing.T) {
	assert.Equal(t, int64(7), intToValue(7, device.TypeInt32).Int())
	assert.Equal(t, int64(7), intToValue(7, device.TypeInt64).Int())
	assert.Equal(t, 7.0, intToValue(7, device.TypeFloat).Float())
	assert.True(t, intToValue(7, device.TypeBool).IsNone())
}

func TestFloatToValueRoundsIntoIntegerControls(t *testing.T) {
	assert.Equal(t, 1.5, floatToValue(1.5, device.TypeFloat).Float())
	assert.Equal(t, int64(2), floatToValue(1.5, device.TypeInt32).Int())
	assert.Equal(t, int64(1), floatToValue(1.4, device.TypeInt64).Int())
	assert.True(t, floatToValue(1.5, device.TypeString).IsNone())
}

func TestBoolToValue(t *testing.T) {
	assert.True(t, boolToValue(true, device.TypeBool).Bool())
	assert.False(t, boolToValue(false, device.TypeBool).Bool())

	// Switch controls declared as integers take 0/1.
	assert.Equal(t, int64(1), boolToValue(true, device.TypeInt32).Int())
	assert.Equal(t, device.TypeInt32, boolToValue(true, device.TypeInt32).Type())
	assert.Equal(t, int64(0), boolToValue(false, device.TypeInt64).Int())

	assert.True(t, boolToValue(true, device.TypeFloat).IsNone())
}

func TestIntsToValue(t *testing.T) {
	v := intsToValue([]int64{1, 2}, device.TypeInt32)
	assert.True(t, v.IsArray())
	assert.Equal(t, []int64{1, 2}, v.IntArray())

	rect := intsToValue([]int64{10, 20, 640, 480}, device.TypeRectangle)
	require.Equal(t, device.TypeRectangle, rect.Type())
	assert.Equal(t, device.Rectangle{X: 10, Y: 20, Width: 640, Height: 480}, rect.Rect())

	assert.True(t, intsToValue([]int64{10, 20, 640}, device.TypeRectangle).IsNone())

	size := intsToValue([]int64{640, 480}, device.TypeSize)
	assert.Equal(t, device.Size{Width: 640, Height: 480}, size.Size())
}

func TestModeToValue(t *testing.T) {
	v, err := modeToValue(awbModes, "daylight", device.TypeInt32)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int())

	_, err = modeToValue(awbModes, "moonlight", device.TypeInt32)
	assert.Error(t, err)
}
