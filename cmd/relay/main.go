package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flag-events/internal/api"
	"flag-events/internal/config"
	"flag-events/internal/dispatch"
	"flag-events/internal/event"
	"flag-events/internal/notification"
	"flag-events/internal/processor"
	"flag-events/internal/storage"
	"flag-events/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger.Init(os.Getenv("LOG_MODE") == "prod")
	defer logger.Sync()
	log := logger.Get()

	cfg := config.Load()
	cfg.Normalize()
	log.Infow("loaded configuration",
		"batch_size", cfg.BatchSize,
		"flush_interval_ms", cfg.FlushInterval.Milliseconds(),
		"queue_capacity", cfg.QueueCapacity,
		"drain_on_stop", cfg.DrainOnStop,
		"collector_url", cfg.CollectorURL,
		"archive_enabled", cfg.ArchiveEnabled,
	)

	// Notification fan-out; the archive hangs off it when enabled.
	center := notification.NewCenter()
	if cfg.ArchiveEnabled {
		archive, err := storage.NewBatchArchive(cfg.DSN())
		if err != nil {
			log.Fatalw("failed to connect to MySQL", "error", err)
		}
		defer func() {
			_ = archive.Close()
			log.Info("closed MySQL connection")
		}()
		center.AddHandler(archive.Handler())
	}

	metrics := processor.NewMetrics(prometheus.DefaultRegisterer)
	factory := event.NewFactory(cfg.CollectorURL)
	dispatcher := dispatch.NewHTTPDispatcher(0)

	proc := processor.NewBatchProcessor(dispatcher, center, factory, metrics, cfg)
	proc.Start()

	eventCtx := event.Context{
		AccountID:     cfg.AccountID,
		ProjectID:     cfg.ProjectID,
		Revision:      cfg.Revision,
		AnonymizeIP:   cfg.AnonymizeIP,
		ClientName:    cfg.ClientName,
		ClientVersion: cfg.ClientVersion,
	}

	mux := http.NewServeMux()
	server := api.NewServer(proc, eventCtx)
	server.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		log.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server error", "error", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server shutdown error", "error", err)
	}

	if !proc.StopAndWait(10 * time.Second) {
		log.Warn("processor drain did not finish in time")
	}
	log.Info("service stopped")
}
