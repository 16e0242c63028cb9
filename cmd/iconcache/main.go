// Command iconcache inspects and maintains a persistent icon cache.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/iconcache/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "iconcache:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
