package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/quickchat/quickchat/internal/adapter/driven/gateway/ws"
	"github.com/quickchat/quickchat/internal/core/service"
)

type Handler struct {
	Registry *service.Registry
	Rooms    *service.RoomService
	Calls    *service.CallService
	Hub      *ws.Hub

	staticDir     string
	allowedOrigin string
}

func NewHandler(registry *service.Registry, rooms *service.RoomService, calls *service.CallService, hub *ws.Hub, staticDir, allowedOrigin string) *Handler {
	return &Handler{
		Registry:      registry,
		Rooms:         rooms,
		Calls:         calls,
		Hub:           hub,
		staticDir:     staticDir,
		allowedOrigin: allowedOrigin,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/ws", h.ServeWS)

	if h.staticDir != "" {
		fs := http.FileServer(http.Dir(h.staticDir))
		r.Handle("/*", fs)
	}

	return r
}
