package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rudolphpienaar/backupmgr/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := cli.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
