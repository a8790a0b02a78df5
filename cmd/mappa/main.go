// Command mappa builds, merges and inspects topic maps.
package main

import (
	"fmt"
	"os"

	"github.com/heuer/mappa/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
