// Command savekit inspects savekit local saves and remote namespaces.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/savekit/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
