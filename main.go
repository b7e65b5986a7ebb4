package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slicequote/internal/config"
	"slicequote/internal/slicer"
	"slicequote/internal/webserver"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "slicequote.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	level, _ := cfg.LogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	err = cfg.EnsureDirectories()
	if err != nil {
		slog.Error("Failed to prepare working storage", "error", err)
		os.Exit(1)
	}

	err = webserver.LoadTranslations()
	if err != nil {
		slog.Error("Failed to load translations", "error", err)
		os.Exit(1)
	}

	if _, err := os.Stat(cfg.Slicer.Path); err != nil {
		slog.Warn("Slicer executable not found, conversions will fail", "path", cfg.Slicer.Path, "error", err)
	}

	runner := slicer.NewRunner(cfg.Slicer.Path, cfg.Slicer.Timeout.Duration)

	server, err := webserver.NewServer(cfg, runner)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server started", "addr", cfg.Server.Addr, "upload_dir", cfg.Storage.UploadDir, "slicer", cfg.Slicer.Path)

		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server startup error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
