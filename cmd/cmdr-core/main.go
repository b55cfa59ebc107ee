// Command cmdr-core is a smoke-test harness for internal/core: it stands
// in for the desktop UI/IPC layer excluded from this module's scope,
// driving the facade's command surface against a real directory tree from
// the terminal so the engine can be exercised without a frontend attached.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vdavid/cmdr-core/cmd"
)

var rootCommand = &cobra.Command{
	Use:   "cmdr-core",
	Short: "Exercises the cmdr-core facade from the command line",
}

var rootConfiguration struct {
	help bool
}

func init() {
	flags := rootCommand.Flags()
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")

	cobra.EnableCommandSorting = false

	rootCommand.AddCommand(
		listCommand,
		viewCommand,
		copyCommand,
		moveCommand,
		deleteCommand,
		volumesCommand,
		watchCommand,
	)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

// startPath reports the directory cmdr-core should root its default local
// volume at: CMDR_E2E_START_PATH if set (the end-to-end test harness's
// override, per the environment-configuration note in SPEC_FULL.md §1),
// falling back to the current working directory.
func startPath() string {
	if p := os.Getenv("CMDR_E2E_START_PATH"); p != "" {
		return p
	}
	wd, err := os.Getwd()
	if err != nil {
		cmd.Fatal(err)
	}
	return wd
}
