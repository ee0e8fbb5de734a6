package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JaceRockman/rulette-server/internal/hub"
	"github.com/JaceRockman/rulette-server/internal/session"
	"github.com/JaceRockman/rulette-server/internal/ws"
)

func SetupRoutes(h *hub.Hub, sessions *session.Registry, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/lobbies", CreateLobby(h))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, sessions, log))
	return r
}
