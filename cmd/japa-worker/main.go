package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"japa/internal/chant"
	"japa/internal/config"
	"japa/internal/db"
	"japa/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.NewPostgres(pool)
	svc := chant.NewService(st, logger, nil)

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("JAPA_WORKER_RUN_ONCE")), "true")
	if runOnce {
		granted, err := svc.GrantDailyBonus(ctx, cfg.BonusCoins)
		if err != nil {
			logger.Error("daily bonus run failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed", "granted", granted)
		return
	}

	ticker := time.NewTicker(cfg.BonusEvery)
	defer ticker.Stop()

	logger.Info("worker started", "bonus_every", cfg.BonusEvery.String(), "bonus_coins", cfg.BonusCoins)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			granted, err := svc.GrantDailyBonus(ctx, cfg.BonusCoins)
			if err != nil {
				logger.Error("daily bonus run failed", "err", err)
				continue
			}
			if granted > 0 {
				logger.Info("daily bonus granted", "accounts", granted)
			}
		}
	}
}
