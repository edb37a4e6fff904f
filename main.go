package main

import (
	"flag"
	"os"

	"go.uber.org/zap"

	"cam-streamd/pkg/calibration"
	"cam-streamd/pkg/capture"
	"cam-streamd/pkg/clock"
	"cam-streamd/pkg/config"
	"cam-streamd/pkg/device"
	"cam-streamd/pkg/device/v4l2drv"
	"cam-streamd/pkg/publish"
	"cam-streamd/pkg/server"
	"cam-streamd/pkg/utils"
)

var (
	configPath = flag.String("config", "./config.yaml", "configuration file")

	logger *zap.SugaredLogger
)

func init() {
	logger = utils.GetLogger()
	flag.Parse()
}

func main() {
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal(err)
	}

	role, err := device.ParseStreamRole(cfg.Camera.Role)
	if err != nil {
		logger.Fatal(err)
	}

	wall := clock.NewSystem()
	if cfg.Clock.Source == "ntp" {
		wall, err = clock.NewNTP(cfg.Clock.NTPServer)
		if err != nil {
			logger.Fatal(err)
		}
		logger.Infof("wall clock synchronized against %s", cfg.Clock.NTPServer)
	}

	bus := publish.NewBus()
	frames := make(chan publish.Frame, 4)
	if err := bus.Subscribe("trace", frames); err != nil {
		logger.Fatal(err)
	}
	go traceFrames(frames)

	driver := capture.New(capture.Options{
		Manager: v4l2drv.NewManager(logger),

		CameraName: cfg.Camera.Name,
		CameraID:   cfg.Camera.ID,

		Role:        role,
		PixelFormat: device.PixelFormat(cfg.Camera.PixelFormat),
		Width:       cfg.Camera.Width,
		Height:      cfg.Camera.Height,
		BufferCount: cfg.Camera.BufferCount,

		FrameID:      cfg.FrameID,
		RemoveStride: cfg.Camera.RemoveStride,
		UseWallClock: cfg.UseWallClock,
		WallClock:    wall,

		Controls: cfg.Controls,

		Sink:           bus,
		Calibration:    calibration.NewFileProvider(),
		CalibrationRef: cfg.Calibration,

		Logger: logger,
	})

	if err := driver.Start(); err != nil {
		logger.Errorf("startup failed: %s", err)
		bus.Close()
		logger.Sync()
		os.Exit(1)
	}

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(driver, cfg.Server.Port, logger)
		srv.Start()
	}

	sig := utils.WatchSignal()
	logger.Infof("received %s, shutting down", sig)

	if srv != nil {
		srv.Shutdown()
	}
	driver.Stop()
	bus.Close()

	stats := driver.Stats()
	logger.Infof("published %d frames, dropped %d, cancelled %d",
		stats.Published, stats.Dropped, stats.Cancelled)
}

// traceFrames drains the trace subscription, logging at debug level so
// the default info level stays quiet during steady streaming.
func traceFrames(frames <-chan publish.Frame) {
	for frame := range frames {
		logger.Debugf("frame %d: %dx%d %s, %d bytes, stamp %d",
			frame.Header.Sequence, frame.Image.Width, frame.Image.Height,
			frame.Image.Encoding, len(frame.Image.Data), frame.Header.Timestamp.UnixNano())
	}
}
