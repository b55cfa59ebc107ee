package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vdavid/cmdr-core/cmd"
	"github.com/vdavid/cmdr-core/internal/core"
	"github.com/vdavid/cmdr-core/internal/viewer"
)

func viewMain(_ *cobra.Command, arguments []string) error {
	c := core.New(nil, nil)
	defer c.Shutdown()

	session, err := c.ViewerOpen(arguments[0])
	if err != nil {
		return err
	}
	defer c.ViewerClose(session.SessionID)

	backend, total, known, err := c.ViewerGetStatus(session.SessionID)
	if err != nil {
		return err
	}
	if known {
		fmt.Printf("backend: %s, %d lines\n", backend, total)
	} else {
		fmt.Printf("backend: %s, line count unknown\n", backend)
	}

	lines, err := c.ViewerGetLines(session.SessionID, viewer.SeekTarget{Type: viewer.Line, LineNumber: 0}, viewConfiguration.count)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Printf("%6d  %s\n", line.Number, line.Text)
	}
	return nil
}

var viewCommand = &cobra.Command{
	Use:   "view <path>",
	Short: "Opens a file in the on-demand viewer and prints the first lines",
	Run:   cmd.Mainify(viewMain),
	Args:  cobra.ExactArgs(1),
}

var viewConfiguration struct {
	count int
}

func init() {
	flags := viewCommand.Flags()
	flags.IntVar(&viewConfiguration.count, "count", 20, "Number of lines to print")
}
