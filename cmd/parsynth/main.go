// Command parsynth detects data-parallel sections in process networks,
// rewrites them into parallel maps and schedules the result.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/parsynth/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SilenceErrors = true
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "parsynth:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
