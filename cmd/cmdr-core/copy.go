package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vdavid/cmdr-core/cmd"
	"github.com/vdavid/cmdr-core/internal/core"
	"github.com/vdavid/cmdr-core/internal/writeop"
)

// runWriteOp registers a/b as separate local volumes rooted at their
// parent directories and starts one operation moving/copying the named
// entry between them, printing every event as it arrives.
func runWriteOp(source, dest string, start func(c *core.Core, srcVolumeID string, sources []string, destVolumeID, destDir string) (*writeop.WriteOperation, error)) error {
	c := core.New(nil, nil)
	defer c.Shutdown()

	sourceDir, sourceName := filepath.Split(source)
	destDir, _ := filepath.Split(dest)

	c.RegisterLocalVolume("src", "Source", sourceDir)
	c.RegisterLocalVolume("dst", "Dest", destDir)

	op, err := start(c, "src", []string{sourceName}, "dst", "")
	if err != nil {
		return err
	}
	return drainOperation(c, op)
}

func drainOperation(c *core.Core, op *writeop.WriteOperation) error {
	for event := range op.Events() {
		switch ev := event.(type) {
		case writeop.ProgressEvent:
			fmt.Printf("  ... %d/%d bytes, %s\n", ev.BytesCompleted, ev.BytesTotal, ev.CurrentPath)
		case writeop.ConflictEvent:
			fmt.Printf("conflict at %s, resolving with Overwrite\n", ev.RelativePath)
			if err := c.ResolveWriteConflict(op.OperationID, writeop.Overwrite, true); err != nil {
				return err
			}
		case writeop.CompleteEvent:
			fmt.Printf("done: %d files, %d bytes\n", ev.Summary.FileCount, ev.Summary.TotalBytes)
		case writeop.CancelledEvent:
			return fmt.Errorf("operation cancelled")
		case writeop.ErrorEvent:
			return fmt.Errorf("operation failed: %s", ev.Message)
		}
	}
	return nil
}

func copyMain(_ *cobra.Command, arguments []string) error {
	return runWriteOp(arguments[0], arguments[1], func(c *core.Core, srcVol string, sources []string, dstVol, destDir string) (*writeop.WriteOperation, error) {
		return c.CopyFilesStart(srcVol, sources, dstVol, destDir, writeop.Config{})
	})
}

func moveMain(_ *cobra.Command, arguments []string) error {
	return runWriteOp(arguments[0], arguments[1], func(c *core.Core, srcVol string, sources []string, dstVol, destDir string) (*writeop.WriteOperation, error) {
		return c.MoveFilesStart(srcVol, sources, dstVol, destDir, writeop.Config{})
	})
}

func deleteMain(_ *cobra.Command, arguments []string) error {
	c := core.New(nil, nil)
	defer c.Shutdown()

	dir, name := filepath.Split(arguments[0])
	c.RegisterLocalVolume("src", "Source", dir)

	op, err := c.DeleteFilesStart("src", []string{name}, writeop.Config{})
	if err != nil {
		return err
	}
	return drainOperation(c, op)
}

var copyCommand = &cobra.Command{
	Use:   "copy <source> <destination>",
	Short: "Copies one file or directory between two local paths",
	Run:   cmd.Mainify(copyMain),
	Args:  cobra.ExactArgs(2),
}

var moveCommand = &cobra.Command{
	Use:   "move <source> <destination>",
	Short: "Moves one file or directory between two local paths",
	Run:   cmd.Mainify(moveMain),
	Args:  cobra.ExactArgs(2),
}

var deleteCommand = &cobra.Command{
	Use:   "delete <path>",
	Short: "Deletes one file or directory",
	Run:   cmd.Mainify(deleteMain),
	Args:  cobra.ExactArgs(1),
}
