package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"splicer/internal/config"
	"splicer/internal/daemon"
	"splicer/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(os.Getenv("SPLICER_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if err := daemon.Run(ctx, cfg, logger); err != nil {
		logger.Error("splicerd exited", logging.Error(err))
		os.Exit(1)
	}
}
