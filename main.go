package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kibrowser/ki-browser/cmd"
	"github.com/kibrowser/ki-browser/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		os.Exit(1)
	}
}
