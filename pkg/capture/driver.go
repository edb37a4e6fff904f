package capture

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"cam-streamd/pkg/calibration"
	"cam-streamd/pkg/clock"
	"cam-streamd/pkg/device"
	"cam-streamd/pkg/publish"
)

// State is the lifecycle controller's position in its strictly linear
// state machine. There is no re-entry: a released driver is done.
type State int32

const (
	StateUninitialized State = iota
	StateAcquiring
	StateConfiguring
	StateControlsDeclared
	StateBuffersMapped
	StateRunning
	StateStopping
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAcquiring:
		return "acquiring"
	case StateConfiguring:
		return "configuring"
	case StateControlsDeclared:
		return "controls-declared"
	case StateBuffersMapped:
		return "buffers-mapped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateReleased:
		return "released"
	}
	return "unknown"
}

// ControlSettings are the optional user-requested control values, one
// field per supported control. Nil fields are not requested.
type ControlSettings struct {
	ExposureTime     *int64   `mapstructure:"exposure_time"`
	FPS              *float64 `mapstructure:"fps"`
	AnalogueGain     *float64 `mapstructure:"analogue_gain"`
	Brightness       *float64 `mapstructure:"brightness"`
	Contrast         *float64 `mapstructure:"contrast"`
	Saturation       *float64 `mapstructure:"saturation"`
	Sharpness        *float64 `mapstructure:"sharpness"`
	ExposureValue    *float64 `mapstructure:"exposure_value"`
	AeEnable         *bool    `mapstructure:"ae_enable"`
	AwbEnable        *bool    `mapstructure:"awb_enable"`
	AwbMode          *string  `mapstructure:"awb_mode"`
	AeMeteringMode   *string  `mapstructure:"ae_metering_mode"`
	AeExposureMode   *string  `mapstructure:"ae_exposure_mode"`
	AeConstraintMode *string  `mapstructure:"ae_constraint_mode"`
	ScalerCrop       []int64  `mapstructure:"scaler_crop"`
}

// Options wires a Driver to its collaborators and carries the
// compulsory stream parameters.
type Options struct {
	Manager device.Manager

	// Camera selection: a non-empty CameraName selects by substring
	// match against camera IDs, otherwise CameraID indexes the
	// enumeration order.
	CameraName string
	CameraID   int

	Role        device.StreamRole
	PixelFormat device.PixelFormat
	Width       int
	Height      int
	BufferCount int

	FrameID      string
	RemoveStride bool
	UseWallClock bool
	WallClock    clock.Source

	Controls ControlSettings

	Sink           publish.Sink
	Calibration    calibration.Provider
	CalibrationRef string

	Logger *zap.SugaredLogger
}

// Driver is the lifecycle controller: it walks startup from acquiring
// the camera to queueing the first requests, and teardown from stopping
// the device to unmapping the buffers.
type Driver struct {
	opts   Options
	logger *zap.SugaredLogger

	state atomic.Int32

	// mu serializes the completion callback against the device-stop
	// step of teardown.
	mu sync.Mutex

	manager   device.Manager
	cam       device.Camera
	cfg       device.StreamConfig
	registry  *Registry
	validator *Validator
	pool      *Pool
	calib     *calibration.Record
	buffers   []device.FrameBuffer
}

func New(opts Options) *Driver {
	if opts.BufferCount <= 0 {
		opts.BufferCount = 4
	}
	d := &Driver{
		opts:      opts,
		logger:    opts.Logger,
		manager:   opts.Manager,
		registry:  NewRegistry(),
		validator: NewValidator(opts.Logger),
	}
	d.state.Store(int32(StateUninitialized))
	return d
}

func (d *Driver) State() State { return State(d.state.Load()) }

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
	d.logger.Debugf("lifecycle: %s", s)
}

// StreamConfig returns the negotiated stream configuration; valid once
// the driver reached StateRunning.
func (d *Driver) StreamConfig() device.StreamConfig { return d.cfg }

func (d *Driver) Stats() Stats {
	if d.pool == nil {
		return Stats{}
	}
	return d.pool.Stats()
}

func (d *Driver) MappedBytes() int { return d.registry.MappedBytes() }

func (d *Driver) StagedControls() map[string]device.Value { return d.validator.Staged() }

func (d *Driver) DeclaredControls() map[string]ControlSpec { return d.validator.Specs() }

// Start runs the startup sequence. Any failure before the device is
// running aborts initialization, releases whatever was already
// acquired, and leaves the driver in StateReleased.
func (d *Driver) Start() (err error) {
	defer func() {
		if err != nil {
			d.abort()
		}
	}()

	d.setState(StateAcquiring)
	if err = d.manager.Start(); err != nil {
		return fmt.Errorf("%w: start manager: %v", ErrDeviceAcquisition, err)
	}

	if err = d.selectCamera(); err != nil {
		return err
	}
	if err = d.cam.Acquire(); err != nil {
		id := d.cam.ID()
		d.cam = nil
		return fmt.Errorf("%w: acquire %s: %v", ErrDeviceAcquisition, id, err)
	}

	d.setState(StateConfiguring)
	if err = d.configureStream(); err != nil {
		return err
	}

	if err = d.validator.Declare(d.cam); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceAcquisition, err)
	}
	d.setState(StateControlsDeclared)
	d.stageConfiguredControls()

	if err = d.mapBuffers(); err != nil {
		return err
	}
	d.setState(StateBuffersMapped)

	d.calib, err = d.opts.Calibration.Get(d.cam.ID(), d.opts.CalibrationRef)
	if err != nil {
		// An uncalibrated stream is still publishable.
		d.logger.Warnf("calibration unavailable: %s", err)
		d.calib = &calibration.Record{CameraName: d.cam.ID()}
		err = nil
	}

	asm := NewAssembler(d.cfg, d.opts.FrameID, d.opts.RemoveStride, d.opts.UseWallClock, d.opts.WallClock)
	d.pool = NewPool(d.cam, d.registry, asm, d.opts.Sink, d.calib, d.validator.Staged, &d.mu, d.logger)
	if err = d.pool.Build(d.buffers); err != nil {
		return err
	}

	d.cam.SetCompletionHandler(d.pool.OnComplete)

	if err = d.cam.Start(); err != nil {
		d.cam.SetCompletionHandler(nil)
		return fmt.Errorf("%w: start camera: %v", ErrDeviceAcquisition, err)
	}
	d.setState(StateRunning)

	if err = d.pool.SubmitAll(); err != nil {
		d.Stop()
		return err
	}

	d.logger.Infof("camera %q streaming %s with %d requests in flight",
		d.cam.ID(), d.cfg, d.pool.Size())

	return nil
}

func (d *Driver) selectCamera() error {
	cams := d.manager.Cameras()
	if len(cams) == 0 {
		return fmt.Errorf("%w: no cameras available", ErrDeviceAcquisition)
	}

	idx := d.opts.CameraID
	if d.opts.CameraName != "" {
		idx = -1
		for i, cam := range cams {
			if strings.Contains(cam.ID(), d.opts.CameraName) {
				d.logger.Infof("found camera %q at index %d: %s", d.opts.CameraName, i, cam.ID())
				idx = i
				break
			}
		}
	}
	if idx < 0 || idx >= len(cams) {
		ids := make([]string, len(cams))
		for i, cam := range cams {
			ids[i] = cam.ID()
		}
		return fmt.Errorf("%w: camera %q not found, available: %s",
			ErrDeviceAcquisition, d.opts.CameraName, strings.Join(ids, ", "))
	}

	d.cam = cams[idx]
	return nil
}

func (d *Driver) configureStream() error {
	offered, err := d.cam.Formats(d.opts.Role)
	if err != nil {
		return fmt.Errorf("%w: enumerate formats: %v", ErrConfiguration, err)
	}

	var common []device.PixelFormat
	for _, f := range offered {
		if slices.Contains(SupportedFormats(), f) {
			common = append(common, f)
		}
	}
	if len(common) == 0 {
		return fmt.Errorf("%w: camera offers none of the supported pixel formats (offered: %v)",
			ErrConfiguration, offered)
	}

	format := d.opts.PixelFormat
	if format == "" {
		format = common[0]
		d.logger.Warnf("no pixel format selected, using %s; set pixel_format to silence this", format)
	} else if !slices.Contains(common, format) {
		return fmt.Errorf("%w: unsupported pixel format %q (common formats: %v)",
			ErrConfiguration, format, common)
	}

	want := device.StreamConfig{
		PixelFormat: format,
		Width:       d.opts.Width,
		Height:      d.opts.Height,
	}
	cfg := want

	status, err := d.cam.Configure(&cfg)
	if err != nil || status == device.ConfigInvalid {
		return fmt.Errorf("%w: stream configuration %s rejected: %v", ErrConfiguration, want, err)
	}
	if status == device.ConfigAdjusted {
		d.logger.Warnf("stream configuration adjusted from %s to %s", want, cfg)
	}

	d.cfg = cfg
	d.logger.Infof("camera %q configured with %s", d.cam.ID(), cfg)
	return nil
}

// stageConfiguredControls validates each requested control value and
// stages the ones that pass. Rejections are logged and skipped; they
// never abort startup.
func (d *Driver) stageConfiguredControls() {
	c := d.opts.Controls

	stage := func(name string, build func(t device.CtrlType) (device.Value, error)) {
		spec, ok := d.validator.Spec(name)
		if !ok {
			d.logger.Errorf("control %s: %s", name, ErrUnknownControl)
			return
		}
		val, err := build(spec.Type)
		if err != nil {
			d.logger.Errorf("control %s: %s", name, err)
			return
		}
		if err := d.validator.ValidateAndStage(name, val); err != nil {
			d.logger.Error(err)
			return
		}
		d.logger.Infof("control %s staged to %s", name, val)
	}
	if c.ExposureTime != nil {
		stage("ExposureTime", func(t device.CtrlType) (device.Value, error) {
			return intToValue(*c.ExposureTime, t), nil
		})
	}
	if c.FPS != nil {
		stage("FrameDurationLimits", func(t device.CtrlType) (device.Value, error) {
			if *c.FPS <= 0 {
				return device.Value{}, fmt.Errorf("fps must be positive, got %g", *c.FPS)
			}
			frameTime := int64(1000000 / *c.FPS) // microseconds
			return intsToValue([]int64{frameTime, frameTime}, t), nil
		})
	}
	if c.AnalogueGain != nil {
		stage("AnalogueGain", func(t device.CtrlType) (device.Value, error) {
			return floatToValue(*c.AnalogueGain, t), nil
		})
	}
	if c.Brightness != nil {
		stage("Brightness", func(t device.CtrlType) (device.Value, error) {
			return floatToValue(*c.Brightness, t), nil
		})
	}
	if c.Contrast != nil {
		stage("Contrast", func(t device.CtrlType) (device.Value, error) {
			return floatToValue(*c.Contrast, t), nil
		})
	}
	if c.Saturation != nil {
		stage("Saturation", func(t device.CtrlType) (device.Value, error) {
			return floatToValue(*c.Saturation, t), nil
		})
	}
	if c.Sharpness != nil {
		stage("Sharpness", func(t device.CtrlType) (device.Value, error) {
			return floatToValue(*c.Sharpness, t), nil
		})
	}
	if c.ExposureValue != nil {
		stage("ExposureValue", func(t device.CtrlType) (device.Value, error) {
			return floatToValue(*c.ExposureValue, t), nil
		})
	}
	if c.AeEnable != nil {
		stage("AeEnable", func(t device.CtrlType) (device.Value, error) {
			return boolToValue(*c.AeEnable, t), nil
		})
	}
	if c.AwbEnable != nil {
		stage("AwbEnable", func(t device.CtrlType) (device.Value, error) {
			return boolToValue(*c.AwbEnable, t), nil
		})
	}
	if c.AwbMode != nil {
		stage("AwbMode", func(t device.CtrlType) (device.Value, error) {
			return modeToValue(awbModes, *c.AwbMode, t)
		})
	}
	if c.AeMeteringMode != nil {
		stage("AeMeteringMode", func(t device.CtrlType) (device.Value, error) {
			return modeToValue(aeMeteringModes, *c.AeMeteringMode, t)
		})
	}
	if c.AeExposureMode != nil {
		stage("AeExposureMode", func(t device.CtrlType) (device.Value, error) {
			return modeToValue(aeExposureModes, *c.AeExposureMode, t)
		})
	}
	if c.AeConstraintMode != nil {
		stage("AeConstraintMode", func(t device.CtrlType) (device.Value, error) {
			return modeToValue(aeConstraintModes, *c.AeConstraintMode, t)
		})
	}
	if c.ScalerCrop != nil {
		stage("ScalerCrop", func(t device.CtrlType) (device.Value, error) {
			return intsToValue(c.ScalerCrop, t), nil
		})
	}
}

func (d *Driver) mapBuffers() error {
	buffers, err := d.cam.AllocateBuffers(d.opts.BufferCount)
	if err != nil {
		return fmt.Errorf("%w: allocate buffers: %v", ErrDeviceAcquisition, err)
	}
	for _, buf := range buffers {
		if _, err := d.registry.Map(buf); err != nil {
			return err
		}
	}
	d.buffers = buffers
	d.logger.Infof("mapped %d buffers, %d bytes total", len(buffers), d.registry.MappedBytes())
	return nil
}

// Stop tears the running driver down: detach the completion callback,
// stop the device under the shutdown lock, release the camera, stop the
// manager, unmap all buffers. Failures are logged and never prevent the
// remaining steps from running.
func (d *Driver) Stop() {
	if d.State() != StateRunning {
		return
	}
	d.setState(StateStopping)

	d.cam.SetCompletionHandler(nil)

	d.mu.Lock()
	if err := d.cam.Stop(); err != nil {
		d.logger.Errorf("stop camera: %s", err)
	}
	d.mu.Unlock()

	if err := d.cam.Release(); err != nil {
		d.logger.Errorf("release camera: %s", err)
	}
	if err := d.manager.Stop(); err != nil {
		d.logger.Errorf("stop camera manager: %s", err)
	}
	if err := d.registry.UnmapAll(); err != nil {
		d.logger.Errorf("unmap buffers: %s", err)
	}

	d.setState(StateReleased)
}

// abort is the failure path before the device ever started: release
// whatever was acquired, without touching the completion machinery.
func (d *Driver) abort() {
	if d.cam != nil {
		if err := d.cam.Release(); err != nil {
			d.logger.Errorf("release camera: %s", err)
		}
	}
	if err := d.manager.Stop(); err != nil {
		d.logger.Errorf("stop camera manager: %s", err)
	}
	if d.registry.MappedBytes() > 0 {
		if err := d.registry.UnmapAll(); err != nil {
			d.logger.Errorf("unmap buffers: %s", err)
		}
	}
	d.setState(StateReleased)
}
