package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vdavid/cmdr-core/cmd"
	"github.com/vdavid/cmdr-core/internal/core"
)

func volumesMain(_ *cobra.Command, arguments []string) error {
	path := startPath()
	if len(arguments) > 0 {
		path = arguments[0]
	}

	c := core.New(nil, nil)
	defer c.Shutdown()
	c.RegisterLocalVolume("default", "Default", path)
	c.RegisterMemoryVolume("scratch", "Scratch", 0)

	defaultID, _ := c.GetDefaultVolumeID()
	for _, v := range c.ListVolumes() {
		marker := " "
		if v.ID() == defaultID {
			marker = "*"
		}
		fmt.Printf("%s %-10s %-30s %s\n", marker, v.ID(), v.Root(), v.Name())
	}

	space, err := c.GetVolumeSpace(path)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s: %d of %d bytes available\n", path, space.AvailableBytes, space.TotalBytes)
	return nil
}

var volumesCommand = &cobra.Command{
	Use:   "volumes [<path>]",
	Short: "Lists registered volumes and reports free space for a path",
	Run:   cmd.Mainify(volumesMain),
	Args:  cobra.MaximumNArgs(1),
}
