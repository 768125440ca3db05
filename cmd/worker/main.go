package main

import (
	"context"
	"os"
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
	log.WithField("service", "meeting-actions-worker").Info("starting worker")

	a, err := app.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize")
	}
	defer a.Close()

	proc, err := a.Processor()
	if err != nil {
		log.WithError(err).Fatal("transcription provider unavailable")
	}

	// Runs interrupted by a crash cannot resume. Only claims older than the
	// stuck window are failed; other workers may still own newer ones.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	n, err := a.Store.FailStuckProcessing(ctx, time.Now().Add(-cfg.Queue.StuckAfter()))
	cancel()
	if err != nil {
		log.WithError(err).Fatal("failed to recover stuck meetings")
	}
	if n > 0 {
		log.WithField("meetings", n).Warn("marked interrupted meetings failed")
	}

	wlog := log.Component("worker")
	srv := worker.NewServer(a.RedisOpt(), worker.ServerConfig{
		Concurrency: cfg.Queue.Concurrency,
		Queues:      map[string]int{cfg.Queue.Name: 1},
	}, wlog)

	log.WithFields(map[string]interface{}{
		"redis":       cfg.Queue.RedisAddr,
		"queue":       cfg.Queue.Name,
		"concurrency": cfg.Queue.Concurrency,
	}).Info("consuming meeting runs")
	if err := srv.Run(worker.NewHandler(proc, wlog)); err != nil {
		log.WithError(err).Fatal("worker terminated")
	}
}
