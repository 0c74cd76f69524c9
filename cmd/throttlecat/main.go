// Command throttlecat copies files through a shared throttler, bounding the
// aggregate rate of all concurrent copies.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "throttlecat:", err)
		os.Exit(1)
	}
}
