// list-cameras enumerates the capture devices the daemon can see, with
// their supported formats and declared controls.
package main

import (
	"fmt"
	"os"

	"cam-streamd/pkg/device"
	"cam-streamd/pkg/device/v4l2drv"
	"cam-streamd/pkg/utils"
)

func main() {
	logger := utils.GetLogger()
	defer logger.Sync()

	manager := v4l2drv.NewManager(logger)
	if err := manager.Start(); err != nil {
		logger.Fatal(err)
	}
	defer manager.Stop()

	cams := manager.Cameras()
	if len(cams) == 0 {
		fmt.Println("no cameras found")
		os.Exit(1)
	}

	for i, cam := range cams {
		fmt.Printf("[%d] %s\n", i, cam.ID())

		if err := cam.Acquire(); err != nil {
			fmt.Printf("    busy: %s\n", err)
			continue
		}

		formats, err := cam.Formats(device.RoleVideoRecording)
		if err != nil {
			fmt.Printf("    formats: %s\n", err)
		} else {
			fmt.Printf("    formats: %v\n", formats)
		}

		controls, err := cam.Controls()
		if err != nil {
			fmt.Printf("    controls: %s\n", err)
		} else {
			for name, info := range controls {
				fmt.Printf("    control %s: %s [%s..%s] default %s\n",
					name, info.Type, info.Min, info.Max, info.Def)
			}
		}

		if err := cam.Release(); err != nil {
			logger.Warnf("release %s: %s", cam.ID(), err)
		}
	}
}
