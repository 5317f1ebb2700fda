// Package main is the entry point for the warden CLI and server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"nc-warden.io/warden/internal/cli"
	"nc-warden.io/warden/internal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := cli.Execute(ctx)
	logger.Sync()
	os.Exit(code)
}
