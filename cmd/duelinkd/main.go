package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/duelink/duelink/internal/logging"
	"github.com/duelink/duelink/internal/server"
	"github.com/duelink/duelink/internal/signaling"
	"github.com/duelink/duelink/internal/version"
)

func main() {
	logging.Init()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	clock := clockwork.NewRealClock()
	registry := signaling.NewRegistry(clock)
	hub := signaling.NewHub(registry, clock)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: server.NewRouter(hub),
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		srv.Shutdown(context.Background())
	}()

	slog.Info("rendezvous server listening", "port", port, "version", version.Version)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
