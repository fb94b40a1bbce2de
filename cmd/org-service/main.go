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
	"github.com/mwpdesign/PP2-sub001/internal/orgadmin"
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
	log.Info("Starting org service", "version", serviceVersion)

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

	// Hierarchy mutations bump the shared downline cache generation so
	// access-service instances drop stale subtrees. Without Redis each
	// reader just ages its local cache out on TTL.
	var redisClient *redis.Client
	var invalidator orgadmin.DirectoryInvalidator
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis unreachable, downline caches will expire on TTL only", "error", err)
			redisClient = nil
		} else {
			invalidator = access.NewDownlineCache(redisClient, time.Duration(cfg.Directory.CacheTTL)*time.Second, log)
		}
		pingCancel()
	}

	// Initialize monitoring
	var metrics *monitoring.MetricsCollector
	var health *monitoring.HealthManager
	if cfg.Monitoring.Enabled {
		metrics = monitoring.NewMetricsCollector("org-service")

		health = monitoring.NewHealthManager("org-service", serviceVersion)
		health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))
		if redisClient != nil {
			health.RegisterChecker("redis", monitoring.NewRedisHealthChecker(redisClient))
		}
	}

	// Initialize the org service
	service, err := orgadmin.NewService(cfg, db.DB, invalidator, log, metrics, health)
	if err != nil {
		log.Error("Failed to initialize org service", "error", err)
		os.Exit(1)
	}

	// Start serving in a goroutine
	go func() {
		if err := service.Start(""); err != nil {
			log.Error("Org service failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down org service...")

	if err := service.Stop(); err != nil {
		log.Error("Shutdown failed", "error", err)
	}

	if redisClient != nil {
		redisClient.Close()
	}

	log.Info("Org service stopped")
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
