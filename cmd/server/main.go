package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"safetyvision/internal/app"
	"safetyvision/internal/config"
	"safetyvision/internal/logger"
)

func main() {
	cfg := config.Load()
	l := logger.NewLogger(cfg)
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(cfg, l)
	if err != nil {
		l.Error("Failed to start: %v", err)
		log.Fatalf("Failed to start server: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		l.Error("Server error: %v", err)
		log.Fatalf("Server error: %v", err)
	}
}
