package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-elevator-controller/internal/config"
	"go-elevator-controller/internal/server"
	"go-elevator-controller/pkg/elevator"
	"go-elevator-controller/pkg/journal"
)

//go:embed static/*
var staticFiles embed.FS

func main() {
	if err := run(); err != nil {
		slog.Error("web-elevator", "error", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred cleanup flushes the journal.
func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	jr, err := journal.Open(cfg.LogFile)
	if err != nil {
		return err
	}
	defer jr.Close()

	ctrl, err := elevator.New(cfg.Elevator, elevator.WithJournal(jr))
	if err != nil {
		return fmt.Errorf("initialize elevator: %w", err)
	}
	hub := server.NewHub(ctrl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Elevator run error", "error", err)
		}
	}()
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Hub run error", "error", err)
		}
	}()

	// Serve static files from embedded filesystem
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", hub.HandleWebSocket)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Starting elevator web server", "addr", addr, "id", cfg.Elevator.ID, "journal", cfg.LogFile)
	slog.Info("Open http://localhost:" + cfg.Port + " in your browser")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
