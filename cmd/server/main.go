package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wuzzlegames/wuzzle/internal/chat"
	"github.com/wuzzlegames/wuzzle/internal/cleanup"
	"github.com/wuzzlegames/wuzzle/internal/comments"
	"github.com/wuzzlegames/wuzzle/internal/config"
	"github.com/wuzzlegames/wuzzle/internal/events"
	"github.com/wuzzlegames/wuzzle/internal/gateway"
	"github.com/wuzzlegames/wuzzle/internal/room"
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

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to ping redis")
	}

	jsCfg := events.DefaultJetStreamConfig()
	jsCfg.URL = cfg.NATSURL
	publisher, err := events.NewJetStreamPublisher(jsCfg)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.NATSURL).Msg("failed to connect to NATS")
	}
	defer publisher.Close()

	clock := clockwork.NewRealClock()
	st := store.NewRedisStore(rdb)
	now := func() int64 { return clock.Now().UnixMilli() }

	roomCfg := room.DefaultConfig()
	roomCfg.GuessLimit = cfg.GuessLimit
	roomCfg.Countdown = cfg.Countdown
	roomCfg.MaxPlayers = cfg.MaxPlayers
	roomCfg.MaxBoards = cfg.MaxBoards
	rooms := room.NewApp(st, publisher, clock, roomCfg)

	manager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	consumerCfg := gateway.DefaultConsumerConfig()
	consumerCfg.URL = cfg.NATSURL
	consumer, err := gateway.NewEventConsumer(manager, consumerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event consumer")
	}
	defer consumer.Close()

	services := &Services{
		Rooms:     rooms,
		Chat:      chat.NewApp(st, now),
		Comments:  comments.NewApp(st, now),
		Manager:   manager,
		WebSocket: gateway.NewWebSocketHandler(manager, rooms),
		Cleanup:   cleanup.NewService(st, clock, cfg.RoomTTL),
	}

	server := setupServer(cfg, services)

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("redis", cfg.RedisAddr).
		Str("nats", cfg.NATSURL).
		Dur("room_ttl", cfg.RoomTTL).
		Msg("starting room server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go manager.Start(ctx)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	log.Info().Msg("room server shutdown complete")
}
