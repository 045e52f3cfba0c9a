package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dineshadepu/wrestler/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		code := cmd.ReportError(os.Stderr, err)
		stop()
		os.Exit(code)
	}
}
