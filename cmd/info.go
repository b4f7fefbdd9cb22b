package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/meshfire/meshfire/tracer/opencl/device"
)

// ListDevices prints the opencl platforms and devices usable by the device
// backend.
func ListDevices(ctx *cli.Context) error {
	setupLogging(ctx)

	platforms, err := device.GetPlatformInfo()
	if err != nil {
		return err
	}

	if len(platforms) == 0 {
		logger.Notice("no opencl platforms detected")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Platform", "Device", "Type", "GFlops"})
	for pIdx, platform := range platforms {
		for _, dev := range platform.Devices {
			table.Append([]string{
				fmt.Sprintf("%02d: %s %s", pIdx, platform.Name, platform.Version),
				dev.Name,
				dev.Type.String(),
				fmt.Sprintf("%d", dev.Speed),
			})
		}
	}
	table.Render()

	return nil
}
