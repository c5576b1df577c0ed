// Command jssat specializes program descriptions into monomorphized
// programs. See internal/cli for the commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/NinoDS/jssat/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands print their own errors; only flag and usage errors
		// reach here unreported.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
