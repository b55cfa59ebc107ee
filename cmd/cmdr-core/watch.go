package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vdavid/cmdr-core/cmd"
	"github.com/vdavid/cmdr-core/internal/core"
)

func watchMain(_ *cobra.Command, arguments []string) error {
	path := startPath()
	if len(arguments) > 0 {
		path = arguments[0]
	}

	c := core.New(nil, nil)
	defer c.Shutdown()

	if err := c.WatchLocalPath(path); err != nil {
		return err
	}
	defer c.UnwatchLocalPath(path)

	fmt.Printf("watching %s (poll interval %s), press Ctrl+C to stop\n", path, c.WatchInterval())
	for diff := range c.Diffs() {
		for _, e := range diff.Added {
			fmt.Printf("+ %s\n", e.Name)
		}
		for _, e := range diff.Removed {
			fmt.Printf("- %s\n", e.Name)
		}
		for _, e := range diff.Modified {
			fmt.Printf("~ %s\n", e.Name)
		}
	}
	return nil
}

var watchCommand = &cobra.Command{
	Use:   "watch [<path>]",
	Short: "Polls a directory and prints each directory-diff as it arrives",
	Run:   cmd.Mainify(watchMain),
	Args:  cobra.MaximumNArgs(1),
}
