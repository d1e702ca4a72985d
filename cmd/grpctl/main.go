package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sjoblomj/irongrp-go/cmd/grpctl/cmd"
	"github.com/sjoblomj/irongrp-go/pkg/logging"
)

var version string = "dev"

func main() {
	ctx, cnc := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cnc()
	go func() {
		defer cnc()
		<-ctx.Done()
	}()

	slog.SetDefault(logging.Logger(os.Stdout, false, slog.LevelInfo))
	ctx = logging.AppendCtx(ctx, slog.Group("grpctl", slog.String("version", version)))

	if err := cmd.NewRoot(ctx, version).Execute(); err != nil {
		os.Exit(1)
	}
}
