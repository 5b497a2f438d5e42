// Command phonecheck validates the phone numbers of a contact CSV file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/phonecheck/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev" //nolint:gochecknoglobals // Set by the linker

func main() {
	os.Exit(run(cli.NewRootCmd(version)))
}

// run executes root and returns the process exit code.
func run(root *cobra.Command) int {
	err := root.Execute()
	if err != nil {
		_, _ = fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return cli.ExitCode(err)
}
