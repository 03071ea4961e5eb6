// Command joindb loads documents into an embedded store and runs join
// queries over them.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/joindb/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands that print their own error output return an ExitError
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
