package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/discog/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := runner.command().Run(ctx, os.Args); err != nil {
		stop()
		switch {
		case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrTokenExpired):
			logger.Fatal("not logged in to Spotify, run `discog auth`", "error", err)
		case errors.Is(err, shared.ErrLocked):
			logger.Fatal("another discog run is in progress", "error", err)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
