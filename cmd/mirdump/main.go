// Command mirdump computes and stores place-level initialization, move and
// borrow states for MIR-shaped function bodies.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/mirdump/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "mirdump: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
