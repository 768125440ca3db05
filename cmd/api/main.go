package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"meeting-actions-go/internal/app"
	"meeting-actions-go/internal/config"
	"meeting-actions-go/internal/logger"
	"meeting-actions-go/internal/worker"
)

func main() {
	_ = godotenv.Load() // loads .env

	cfg, err := config.Load(os.Getenv("MEETINGS_CONFIG"))
	if err != nil {
		logger.New().WithError(err).Fatal("invalid configuration")
	}
	log := logger.NewWithOptions(logger.Options{Environment: cfg.Logging.Environment, Level: cfg.Logging.Level})
	log.WithField("service", "meeting-actions-api").Info("starting service")

	a, err := app.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize")
	}
	defer a.Close()

	queue := worker.NewClient(a.RedisOpt(), worker.ClientOptions{Queue: cfg.Queue.Name})
	defer queue.Close()

	s := &server{store: a.Store, queue: queue, log: log}
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", srv.Addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server terminated")
	}
	log.Info("server stopped")
}
