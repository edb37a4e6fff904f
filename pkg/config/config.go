// Package config loads the daemon configuration from a YAML file via
// viper. Compulsory keys are checked up front so a broken configuration
// aborts startup with one error listing everything that is missing,
// before any device resource is touched.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"cam-streamd/pkg/capture"
)

// CameraConfig selects and configures the capture stream.
type CameraConfig struct {
	// Name selects the camera by substring match against camera IDs;
	// ID is the fallback index when Name is empty.
	Name string `mapstructure:"name"`
	ID   int    `mapstructure:"id"`

	Role        string `mapstructure:"role"`
	PixelFormat string `mapstructure:"pixel_format"`
	Width       int    `mapstructure:"width"`
	Height      int    `mapstructure:"height"`

	BufferCount  int  `mapstructure:"buffer_count"`
	RemoveStride bool `mapstructure:"remove_stride"`
}

// ClockConfig selects the wall-clock source for timestamp rebasing.
type ClockConfig struct {
	Source    string `mapstructure:"source"` // "system" or "ntp"
	NTPServer string `mapstructure:"ntp_server"`
}

// ServerConfig controls the status HTTP API.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type Config struct {
	Camera       CameraConfig            `mapstructure:"camera"`
	FrameID      string                  `mapstructure:"frame_id"`
	Calibration  string                  `mapstructure:"calibration"`
	UseWallClock bool                    `mapstructure:"use_wall_clock"`
	Clock        ClockConfig             `mapstructure:"clock"`
	Server       ServerConfig            `mapstructure:"server"`
	Controls     capture.ControlSettings `mapstructure:"controls"`
}

// compulsory keys must be present in the file; everything else has a
// default or is optional.
var compulsoryKeys = []string{
	"camera.name",
	"camera.role",
	"camera.pixel_format",
	"camera.width",
	"camera.height",
	"frame_id",
	"calibration",
	"use_wall_clock",
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("camera.id", 0)
	v.SetDefault("camera.buffer_count", 4)
	v.SetDefault("camera.remove_stride", false)
	v.SetDefault("clock.source", "system")
	v.SetDefault("clock.ntp_server", "pool.ntp.org")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 9990)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var missing []string
	for _, key := range compulsoryKeys {
		if !v.IsSet(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing compulsory parameters: %s", strings.Join(missing, ", "))
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Camera.Width < 0 || cfg.Camera.Height < 0 {
		return nil, fmt.Errorf("invalid resolution %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if len(cfg.Controls.ScalerCrop) != 0 && len(cfg.Controls.ScalerCrop) != 4 {
		return nil, fmt.Errorf("controls.scaler_crop needs 4 elements, got %d", len(cfg.Controls.ScalerCrop))
	}
	switch cfg.Clock.Source {
	case "system", "ntp":
	default:
		return nil, fmt.Errorf("unknown clock source %q", cfg.Clock.Source)
	}

	return cfg, nil
}
