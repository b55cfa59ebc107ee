package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vdavid/cmdr-core/cmd"
	"github.com/vdavid/cmdr-core/internal/core"
	"github.com/vdavid/cmdr-core/internal/fsutil"
	"github.com/vdavid/cmdr-core/internal/listing"
)

func listMain(_ *cobra.Command, arguments []string) error {
	path := startPath()
	if len(arguments) > 0 {
		path = arguments[0]
	}

	c := core.New(nil, nil)
	defer c.Shutdown()
	c.RegisterLocalVolume("default", "Default", path)

	listingID, events, err := c.ListDirectoryStartStreaming("default", path, fsutil.SortByName, fsutil.SortAscending)
	if err != nil {
		return err
	}
	defer c.ListDirectoryEnd(listingID)

	for event := range events {
		switch ev := event.(type) {
		case listing.ProgressEvent:
			fmt.Printf("  ... %d entries read\n", ev.Loaded)
		case listing.CompleteEvent:
			fmt.Printf("%d entries, max filename width %d\n", ev.Total, ev.MaxFilenameWidth)
		case listing.ErrorEvent:
			return fmt.Errorf("listing failed: %s", ev.Message)
		case listing.CancelledEvent:
			return fmt.Errorf("listing cancelled")
		}
	}

	total, _ := c.GetTotalCount(listingID, true)
	entries, _ := c.GetFileRange(listingID, 0, total, true)
	for _, e := range entries {
		kind := "file"
		if e.IsDirectory {
			kind = "dir "
		}
		size := "-"
		if e.Size != nil {
			size = fmt.Sprintf("%d", *e.Size)
		}
		fmt.Printf("%s  %10s  %s\n", kind, size, e.Name)
	}
	return nil
}

var listCommand = &cobra.Command{
	Use:   "list [<path>]",
	Short: "Streams a directory listing and prints the result",
	Run:   cmd.Mainify(listMain),
	Args:  cobra.MaximumNArgs(1),
}
