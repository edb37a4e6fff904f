package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
camera:
  name: "usb camera"
  role: video
  pixel_format: YUYV
  width: 1280
  height: 720
frame_id: camera
calibration: ""
use_wall_clock: true
`

func TestLoadMinimalConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "usb camera", cfg.Camera.Name)
	assert.Equal(t, "YUYV", cfg.Camera.PixelFormat)
	assert.Equal(t, 1280, cfg.Camera.Width)
	assert.Equal(t, 720, cfg.Camera.Height)
	assert.True(t, cfg.UseWallClock)

	// Defaults.
	assert.Equal(t, 0, cfg.Camera.ID)
	assert.Equal(t, 4, cfg.Camera.BufferCount)
	assert.False(t, cfg.Camera.RemoveStride)
	assert.Equal(t, "system", cfg.Clock.Source)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, 9990, cfg.Server.Port)
}

func TestLoadListsAllMissingKeys(t *testing.T) {
	_, err := Load(writeConfig(t, `
camera:
  name: cam
  role: video
frame_id: camera
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camera.pixel_format")
	assert.Contains(t, err.Error(), "camera.width")
	assert.Contains(t, err.Error(), "camera.height")
	assert.Contains(t, err.Error(), "calibration")
	assert.Contains(t, err.Error(), "use_wall_clock")
	assert.NotContains(t, err.Error(), "camera.name")
}

func TestLoadControls(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
controls:
  exposure_time: 20000
  fps: 30
  ae_enable: false
  awb_mode: daylight
  scaler_crop: [0, 0, 640, 480]
`))
	require.NoError(t, err)

	require.NotNil(t, cfg.Controls.ExposureTime)
	assert.Equal(t, int64(20000), *cfg.Controls.ExposureTime)
	require.NotNil(t, cfg.Controls.FPS)
	assert.Equal(t, 30.0, *cfg.Controls.FPS)
	require.NotNil(t, cfg.Controls.AeEnable)
	assert.False(t, *cfg.Controls.AeEnable)
	require.NotNil(t, cfg.Controls.AwbMode)
	assert.Equal(t, "daylight", *cfg.Controls.AwbMode)
	assert.Equal(t, []int64{0, 0, 640, 480}, cfg.Controls.ScalerCrop)

	assert.Nil(t, cfg.Controls.Brightness)
}

func TestLoadRejectsShortScalerCrop(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
controls:
  scaler_crop: [0, 0, 640]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scaler_crop")
}

func TestLoadRejectsUnknownClockSource(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
clock:
  source: gps
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gps")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
