// One-shot room cleanup for external schedulers (cron, Cloud Scheduler).
// Exits non-zero when the pass cannot run; individual room failures are
// logged and reflected in the report instead.
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wuzzlegames/wuzzle/internal/cleanup"
	"github.com/wuzzlegames/wuzzle/internal/config"
	"github.com/wuzzlegames/wuzzle/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to ping redis")
	}

	service := cleanup.NewService(store.NewRedisStore(rdb), clockwork.NewRealClock(), cfg.RoomTTL)

	report, err := service.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("cleanup pass failed")
	}

	log.Info().
		Int("scanned", report.Scanned).
		Int("deleted", report.Deleted).
		Int("failed", report.Failed).
		Dur("ttl", cfg.RoomTTL).
		Msg("cleanup pass complete")

	if report.Failed > 0 {
		os.Exit(1)
	}
}
