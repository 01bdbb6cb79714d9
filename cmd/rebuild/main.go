package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rebuild-labs/rebuild-ci/internal/cli"
)

func main() {
	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)

	app := &cli.App{
		Environ: os.Environ(),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
	code := cli.Execute(ctx, app, os.Args[1:])
	stop()
	os.Exit(code)
}
