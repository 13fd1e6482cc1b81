package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gochat/internal/config"
	"gochat/internal/httpserver"
	"gochat/internal/security"
	"gochat/internal/service"
	"gochat/internal/store/sqlite"
	"gochat/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var zl *zap.Logger
	if cfg.Debug || cfg.Env == "development" {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := sqlite.Migrate(db); err != nil {
		logger.Fatalf("failed to run migrations: %v", err)
	}

	cipher, err := security.NewCipher(cfg.EncryptionKey, logger)
	if err != nil {
		logger.Fatalf("failed to initialize cipher: %v", err)
	}

	directory := sqlite.NewDirectory(db)
	messages := sqlite.NewMessageStore(db)
	chat := service.NewChatService(directory, messages, cipher, logger, cfg.HistoryLimit, cfg.MaxPublicMessages)

	presence := ws.NewRegistry()
	rooms := ws.NewRouter()
	gateway := ws.NewGateway(presence, rooms, chat, logger)
	wsHandler := ws.MakeHandler(gateway, cfg.CORSOrigins, logger)

	router := httpserver.NewRouter(cfg, wsHandler)

	srv := &http.Server{
		Addr:        cfg.HTTPAddr(),
		Handler:     router,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Infof("starting %s on %s", cfg.AppName, cfg.HTTPAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
	if n := cipher.Fallbacks(); n > 0 {
		logger.Warnf("cipher fell back to passthrough %d times this run", n)
	}
}
