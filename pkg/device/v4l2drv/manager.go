//go:build linux

// Package v4l2drv implements the device boundary on top of V4L2,
// using go4vl for device access and raw UAPI calls for the buffer
// cycle.
package v4l2drv

import (
	"errors"
	"path/filepath"
	"sort"

	godevice "github.com/vladimirvivien/go4vl/device"
	"go.uber.org/zap"

	"cam-streamd/pkg/device"
)

// Manager enumerates /dev/video* capture nodes.
type Manager struct {
	logger  *zap.SugaredLogger
	cameras []device.Camera
	started bool
}

var _ device.Manager = (*Manager)(nil)

func NewManager(logger *zap.SugaredLogger) *Manager {
	return &Manager{logger: logger}
}

// Start probes every video node once to learn its card name; nodes
// that cannot be opened are skipped.
func (m *Manager) Start() error {
	if m.started {
		return errors.New("manager already started")
	}

	paths, err := filepath.Glob("/dev/video*")
	if err != nil {
		return err
	}
	sort.Strings(paths)

	for _, path := range paths {
		card, err := probeCard(path)
		if err != nil {
			m.logger.Debugf("skipping %s: %s", path, err)
			continue
		}
		m.cameras = append(m.cameras, newCamera(path, card, m.logger))
	}

	m.started = true
	return nil
}

func probeCard(path string) (string, error) {
	dev, err := godevice.Open(path)
	if err != nil {
		return "", err
	}
	defer dev.Close()
	return dev.Capability().Card, nil
}

func (m *Manager) Cameras() []device.Camera { return m.cameras }

func (m *Manager) Stop() error {
	m.cameras = nil
	m.started = false
	return nil
}
