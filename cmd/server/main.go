package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"autoreply/internal/api"
	"autoreply/internal/auth"
	"autoreply/internal/config"
	"autoreply/internal/instagram"
	"autoreply/internal/logging"
	"autoreply/internal/notify"
	"autoreply/internal/pipeline"
	"autoreply/internal/scheduler"
	"autoreply/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, closeLog, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Path:   cfg.LogPath,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	if cfg.DatabaseDriver == storage.DriverSQLite {
		if dir := filepath.Dir(cfg.DatabaseURL); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				log.Error("create data directory", "path", dir, "error", err)
				return err
			}
		}
	}

	store, err := storage.New(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "driver", cfg.DatabaseDriver, "error", err)
		return err
	}
	defer func() { _ = store.Close() }()

	var (
		notifier notify.Notifier = notify.Nop{}
		alerts   *notify.Telegram
	)
	if cfg.AlertsEnabled() {
		alerts, err = notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramAlertChatID, log)
		if err != nil {
			log.Error("create telegram notifier", "error", err)
			return err
		}
		notifier = alerts
		log.Info("delivery failure alerts enabled", "chat_id", cfg.TelegramAlertChatID)
	}

	sender := instagram.New(
		instagram.NewHTTPClient(cfg.InstagramSendTimeout),
		cfg.InstagramAPIBase,
		cfg.InstagramSendTimeout,
	)
	proc := pipeline.New(store, sender, log, pipeline.Options{
		Fallback:    cfg.FallbackResponse,
		SendTimeout: cfg.InstagramSendTimeout,
		Notifier:    notifier,
	})

	srv := api.New(store, proc, auth.NewTokenIssuer(cfg.SecretKey, cfg.TokenTTL), log, api.Options{
		VerifyToken: cfg.WebhookVerifyToken,
		CORSOrigins: cfg.CORSOrigins,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched := scheduler.New(store, log)
	sched.SetInterval(cfg.MaintenanceInterval)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.HTTPAddr, "driver", cfg.DatabaseDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return sched.Run(gCtx)
	})

	if alerts != nil {
		g.Go(func() error {
			return alerts.Run(gCtx)
		})
	}

	err = g.Wait()
	log.Info("server stopped")
	return err
}
