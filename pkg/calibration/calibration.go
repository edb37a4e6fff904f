// Package calibration loads per-camera calibration records that are
// attached to every published frame.
package calibration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Matrix is a row-major calibration matrix.
type Matrix struct {
	Rows int       `json:"rows" yaml:"rows"`
	Cols int       `json:"cols" yaml:"cols"`
	Data []float64 `json:"data" yaml:"data"`
}

// Record is one camera's calibration, in the shape calibration tooling
// commonly emits (intrinsics, distortion, rectification, projection).
type Record struct {
	CameraName      string `json:"camera_name" yaml:"camera_name"`
	ImageWidth      int    `json:"image_width" yaml:"image_width"`
	ImageHeight     int    `json:"image_height" yaml:"image_height"`
	DistortionModel string `json:"distortion_model" yaml:"distortion_model"`

	CameraMatrix           Matrix `json:"camera_matrix" yaml:"camera_matrix"`
	DistortionCoefficients Matrix `json:"distortion_coefficients" yaml:"distortion_coefficients"`
	RectificationMatrix    Matrix `json:"rectification_matrix" yaml:"rectification_matrix"`
	ProjectionMatrix       Matrix `json:"projection_matrix" yaml:"projection_matrix"`
}

// Provider resolves the calibration record for a camera.
type Provider interface {
	Get(cameraID, ref string) (*Record, error)
}

// FileProvider reads records from YAML or JSON files; ref is the file
// path. An empty ref yields an empty record so an uncalibrated camera
// can still publish.
type FileProvider struct{}

func NewFileProvider() *FileProvider { return &FileProvider{} }

func (p *FileProvider) Get(cameraID, ref string) (*Record, error) {
	if ref == "" {
		return &Record{CameraName: cameraID}, nil
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("read calibration: %w", err)
	}

	rec := &Record{}
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, rec)
	case ".json":
		err = json.Unmarshal(data, rec)
	default:
		return nil, fmt.Errorf("calibration %s: unsupported file type", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("parse calibration %s: %w", ref, err)
	}

	if rec.CameraName == "" {
		rec.CameraName = cameraID
	}

	return rec, nil
}
