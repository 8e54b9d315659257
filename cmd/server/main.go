package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quickchat/quickchat/internal/adapter/driven/gateway/ws"
	handler "github.com/quickchat/quickchat/internal/adapter/driving/http"
	"github.com/quickchat/quickchat/internal/config"
	"github.com/quickchat/quickchat/internal/core/service"
)

func main() {
	root := &cobra.Command{
		Use:   "server",
		Short: "QuickChat signaling and chat relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(config.ServerConfig())
		},
	}
	config.BindServerFlags(root.Flags())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Server) error {
	w := zerolog.ConsoleWriter{Out: os.Stdout}
	l := zerolog.New(w).With().Timestamp().Caller().Logger()

	registry := service.NewRegistry()
	hub := ws.NewHub()
	rooms := service.NewRoomService(registry, hub)
	calls := service.NewCallService(registry, hub, cfg.RingTimeout)
	h := handler.NewHandler(registry, rooms, calls, hub, cfg.StaticDir, cfg.AllowedOrigin)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: h.NewRouter(),
	}

	go func() {
		l.Info().Str("addr", cfg.ListenAddr).Dur("ring_timeout", cfg.RingTimeout).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	l.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("server forced to shutdown")
	}

	hub.Close()
	l.Info().Msg("server exited")
	return nil
}
