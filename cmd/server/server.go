package main

import (
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/wuzzlegames/wuzzle/internal/chat"
	"github.com/wuzzlegames/wuzzle/internal/cleanup"
	"github.com/wuzzlegames/wuzzle/internal/comments"
	"github.com/wuzzlegames/wuzzle/internal/config"
	"github.com/wuzzlegames/wuzzle/internal/gateway"
	"github.com/wuzzlegames/wuzzle/internal/room"
)

// Services bundles everything the HTTP surface serves.
type Services struct {
	Rooms     *room.App
	Chat      *chat.App
	Comments  *comments.App
	Manager   *gateway.ConnectionManager
	WebSocket *gateway.WebSocketHandler
	Cleanup   *cleanup.Service
}

func setupServer(cfg *config.Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	gateway.NewAPIHandler(services.Rooms, services.Chat, services.Comments).RegisterRoutes(mux)
	mux.Handle("/ws", services.WebSocket)

	// External schedulers hit this to expire idle rooms.
	mux.Handle("/jobs/cleanup", cleanup.Handler(services.Cleanup))

	setupHealthCheck(mux)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
