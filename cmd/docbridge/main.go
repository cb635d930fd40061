// Command docbridge infers relational tables from document stores and
// object caches and translates relational requests into their native
// query languages.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/docbridge/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// ExitErrors were already reported by the command.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
