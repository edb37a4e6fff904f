package calibration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlRecord = `
camera_name: narrow_stereo
image_width: 640
image_height: 480
distortion_model: plumb_bob
camera_matrix:
  rows: 3
  cols: 3
  data: [430.2, 0, 306.9, 0, 430.5, 227.3, 0, 0, 1]
distortion_coefficients:
  rows: 1
  cols: 5
  data: [-0.013, -0.026, 0.001, -0.002, 0]
rectification_matrix:
  rows: 3
  cols: 3
  data: [1, 0, 0, 0, 1, 0, 0, 0, 1]
projection_matrix:
  rows: 3
  cols: 4
  data: [420.8, 0, 304.5, 0, 0, 424.4, 227.4, 0, 0, 0, 1, 0]
`

const jsonRecord = `{
  "camera_name": "narrow_stereo",
  "image_width": 640,
  "image_height": 480,
  "distortion_model": "plumb_bob",
  "camera_matrix": {"rows": 3, "cols": 3, "data": [430.2, 0, 306.9, 0, 430.5, 227.3, 0, 0, 1]},
  "distortion_coefficients": {"rows": 1, "cols": 5, "data": [-0.013, -0.026, 0.001, -0.002, 0]},
  "rectification_matrix": {"rows": 3, "cols": 3, "data": [1, 0, 0, 0, 1, 0, 0, 0, 1]},
  "projection_matrix": {"rows": 3, "cols": 4, "data": [420.8, 0, 304.5, 0, 0, 424.4, 227.4, 0, 0, 0, 1, 0]}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileProviderEmptyRef(t *testing.T) {
	rec, err := NewFileProvider().Get("usb camera", "")
	require.NoError(t, err)
	assert.Equal(t, "usb camera", rec.CameraName)
	assert.Zero(t, rec.ImageWidth)
}

func TestFileProviderYAML(t *testing.T) {
	rec, err := NewFileProvider().Get("cam0", writeFile(t, "calib.yaml", yamlRecord))
	require.NoError(t, err)

	assert.Equal(t, "narrow_stereo", rec.CameraName)
	assert.Equal(t, 640, rec.ImageWidth)
	assert.Equal(t, 480, rec.ImageHeight)
	assert.Equal(t, "plumb_bob", rec.DistortionModel)
	assert.Equal(t, 3, rec.CameraMatrix.Rows)
	require.Len(t, rec.CameraMatrix.Data, 9)
	assert.Equal(t, 430.2, rec.CameraMatrix.Data[0])
	assert.Equal(t, 4, rec.ProjectionMatrix.Cols)
}

func TestFileProviderJSON(t *testing.T) {
	rec, err := NewFileProvider().Get("cam0", writeFile(t, "calib.json", jsonRecord))
	require.NoError(t, err)

	assert.Equal(t, "narrow_stereo", rec.CameraName)
	require.Len(t, rec.DistortionCoefficients.Data, 5)
}

func TestFileProviderFillsCameraName(t *testing.T) {
	rec, err := NewFileProvider().Get("cam0", writeFile(t, "calib.yaml", `
image_width: 640
image_height: 480
`))
	require.NoError(t, err)
	assert.Equal(t, "cam0", rec.CameraName)
}

func TestFileProviderUnsupportedExtension(t *testing.T) {
	_, err := NewFileProvider().Get("cam0", writeFile(t, "calib.ini", "[calib]"))
	assert.Error(t, err)
}

func TestFileProviderMissingFile(t *testing.T) {
	_, err := NewFileProvider().Get("cam0", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
