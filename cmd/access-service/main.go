package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mwpdesign/PP2-sub001/internal/access"
	"github.com/mwpdesign/PP2-sub001/pkg/config"
	"github.com/mwpdesign/PP2-sub001/pkg/database"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/monitoring"
)

const serviceVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := newLogger(cfg)
	log.Info("Starting access service", "version", serviceVersion)

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.CreateSchema(ctx); err != nil {
		cancel()
		log.Error("Failed to create database schema", "error", err)
		os.Exit(1)
	}
	cancel()

	// Optional shared downline cache. The service degrades to per-process
	// caching when Redis is absent or unreachable.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis unreachable, falling back to local downline cache", "error", err)
			redisClient = nil
		}
		pingCancel()
	}

	// Initialize monitoring
	var metrics *monitoring.MetricsCollector
	var health *monitoring.HealthManager
	if cfg.Monitoring.Enabled {
		metrics = monitoring.NewMetricsCollector("access-service")

		health = monitoring.NewHealthManager("access-service", serviceVersion)
		health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))
		if redisClient != nil {
			health.RegisterChecker("redis", monitoring.NewRedisHealthChecker(redisClient))
		}
	}

	var tracing *monitoring.TracingManager
	var monMw *monitoring.MonitoringMiddleware
	if cfg.Monitoring.Tracing.Enabled {
		tracing, err = monitoring.NewTracingManager(&monitoring.TracingConfig{
			ServiceName:    "access-service",
			ServiceVersion: serviceVersion,
			JaegerEndpoint: cfg.Monitoring.Tracing.JaegerEndpoint,
			Environment:    cfg.Monitoring.Tracing.Environment,
			SamplingRate:   cfg.Monitoring.Tracing.SamplingRate,
		})
		if err != nil {
			log.Error("Failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		monMw = monitoring.NewMonitoringMiddleware(metrics, tracing, log)
	}

	// Initialize the access service
	service, err := access.NewService(cfg, db.DB, redisClient, log, metrics, health, monMw)
	if err != nil {
		log.Error("Failed to initialize access service", "error", err)
		os.Exit(1)
	}

	// Start serving in a goroutine
	go func() {
		if err := service.Start(""); err != nil {
			log.Error("Access service failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down access service...")

	if err := service.Stop(); err != nil {
		log.Error("Shutdown failed", "error", err)
	}

	if tracing != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Error("Tracing shutdown failed", "error", err)
		}
		shutdownCancel()
	}

	if redisClient != nil {
		redisClient.Close()
	}

	log.Info("Access service stopped")
}

func newLogger(cfg *config.Config) *logger.Logger {
	if cfg.Logging.FileEnabled {
		return logger.NewRotating(cfg.Logging.Level, logger.RotationConfig{
			Filename:   cfg.Logging.FilePath,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		})
	}
	return logger.New(cfg.Logging.Level)
}
