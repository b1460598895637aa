// Package main is the entry point of the plaza reward service.
// It loads configuration, builds the application and serves HTTP until
// SIGINT/SIGTERM, then shuts down gracefully.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"serotonyl.ru/plaza-rewards/internal/app"
	"serotonyl.ru/plaza-rewards/internal/config"
)

func main() {
	setupLogging()

	log.Info("=== Plaza rewards starting ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err == nil {
		log.SetLevel(level)
	}
	if closer := setupLogFile(cfg); closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.DB.Close()

	application.Scheduler.Start(ctx)
	defer application.Scheduler.Stop()

	log.Info("=== Plaza rewards ready ===")

	if err := application.Server.Start(ctx); err != nil {
		log.WithError(err).Error("HTTP server stopped with error")
	}

	log.Info("=== Plaza rewards stopped ===")
}

// setupLogging sets the log format.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}

// setupLogFile adds a rotating file next to stdout when APP_LOG_FILE is set.
func setupLogFile(cfg *config.Config) io.Closer {
	if cfg.AppLogFile == "" {
		return nil
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.AppLogFile,
		MaxSize:    cfg.AppLogFileMaxSizeMB, // megabytes
		MaxBackups: cfg.AppLogFileBackups,
		MaxAge:     cfg.AppLogFileMaxAge, // days
		Compress:   cfg.AppLogFileCompress,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, lj))
	log.WithField("file", cfg.AppLogFile).Info("Logging to file")
	return lj
}
