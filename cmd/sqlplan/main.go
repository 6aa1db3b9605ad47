package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/queryplan/sqlplan/cmd/sqlplan/api"
)

func main() {
	configFile := flag.String("config", "", "configuration file")
	flag.Parse()

	cfg, env, err := loadConfig(*configFile)
	if err != nil {
		log.Fatal(err)
	}

	var logger *zap.Logger
	if env == DebugMode {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	srv, err := api.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to configure server", zap.Error(err))
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Warn("failed to close warehouse", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("driver", cfg.Driver),
			zap.Bool("checkTableAccess", cfg.CheckTableAccess),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Give server 30 seconds to finish requests
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
