package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mehmetymw/blocksink/internal/config"
	"github.com/mehmetymw/blocksink/internal/metrics"
	"github.com/mehmetymw/blocksink/internal/notifier"
	"github.com/mehmetymw/blocksink/internal/sink/kafka"
	"github.com/mehmetymw/blocksink/internal/sink/postgres"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		// logger is not configured yet
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapConfig := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	logger, _ := zapConfig.Build()

	defer logger.Sync()

	logger.Info("Starting blocksink",
		zap.String("postgres", cfg.Postgres.String()),
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
		zap.Bool("panic_on_db_errors", cfg.PanicOnDBErrors))

	m := metrics.NewSinkMetrics("blocksink", prometheus.DefaultRegisterer)
	n := notifier.New(cfg.PanicOnDBErrors, logger.Named("notifier"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pgLogger := logger.Named("postgres")
	conn, err := postgres.Connect(ctx, cfg.Postgres, pgLogger)
	if err != nil {
		cancel()
		logger.Fatal("postgres connect failed", zap.Error(err))
	}
	pg, err := postgres.New(ctx, conn, cfg.Postgres, m, pgLogger)
	cancel()
	if err != nil {
		conn.Close(context.Background())
		logger.Fatal("block metadata sink init failed", zap.Error(err))
	}
	n.AddSink("postgres", pg)

	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, m, logger.Named("kafka"))
		if err != nil {
			logger.Fatal("kafka sink init failed", zap.Error(err))
		}
		n.AddSink("kafka", ks)
	}
	defer func() {
		if err := n.Close(); err != nil {
			logger.Error("Closing sinks failed", zap.Error(err))
		}
	}()

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: newRouter(n, prometheus.DefaultGatherer, logger.Named("http"))}
	logger.Info("Starting HTTP server", zap.String("addr", cfg.HTTP.Addr))
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("Application started successfully, waiting for signals")
	<-quit

	logger.Info("Shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// in-flight notifications finish before the sinks are closed
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
