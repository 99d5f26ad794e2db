package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"gearstash/internal/config"
)

func main() {
	cfg := config.NewConfig()

	newLogger := zap.NewProduction
	if cfg.Verbose {
		newLogger = zap.NewDevelopment
	}
	logger, err := newLogger()
	if err != nil {
		log.Fatal(err)
	}
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	checker := NewChecker(cfg, logger)
	seed := checker.Seed()
	sugar.Infow("checkgear",
		"run", checker.runId,
		"seed", seed,
		"ops", cfg.OpsCount,
		"gears", cfg.GearCount,
	)

	if err := checker.plan().Run(ctx, seed, cfg.OpsCount); err != nil {
		if errors.Is(err, context.Canceled) {
			sugar.Infow("checkgear interrupted")
			return
		}
		sugar.Fatalw("checkgear failed", "run", checker.runId, "error", err)
	}
	sugar.Infow("checkgear passed", "run", checker.runId, "seed", seed)
}
