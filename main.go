// The main package for the series-collector executable.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/JakeFAU/series-collector/cmd"
)

// main cancels the command context on SIGINT or SIGTERM and defers the rest
// to the cobra CLI.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.Execute(ctx)
}
