package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"channelbot/internal/bot"
	"channelbot/internal/config"
	"channelbot/internal/logger"
	"channelbot/internal/repository"
	"channelbot/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	log := logger.New(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	db, err := repository.NewDB(&cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	statsSvc := service.NewStatsService(userRepo, log)
	broadcastSvc := service.NewBroadcastService(userRepo, log)

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, statsSvc, broadcastSvc, &cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("bot")
	}

	scheduler := service.NewSchedulerService(time.Local)
	if cfg.StatsInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.StatsInterval, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			telegramBot.SendStatsDigest(jobCtx)
		}); err != nil {
			log.Fatal().Err(err).Msg("schedule stats digest")
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	log.Info().Msg("channel bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot stopped with error")
	}
	log.Info().Msg("shutdown complete")
}
