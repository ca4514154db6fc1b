// Command tppenforce legalizes tagged GEMM contractions for TPP kernels.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tppenforce/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
