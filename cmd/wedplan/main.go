package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/wedplan/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "wedplan:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
