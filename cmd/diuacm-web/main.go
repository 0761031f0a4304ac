package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"diuacm-web/config"
	"diuacm-web/internal/api"
	"diuacm-web/internal/backend"
	"diuacm-web/internal/db"
	"diuacm-web/internal/notification"
	"diuacm-web/internal/reminder"
	"diuacm-web/internal/session"
	"diuacm-web/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "diuacm-web ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Printf("ignoring .env: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded from %s", configPath)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Printf("database initialized (%s)", cfg.Database.Driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	sessions := session.NewManager(appStore, &cfg.Session)
	if err := sessions.Init(ctx); err != nil {
		logger.Printf("failed to purge expired sessions: %v", err)
	}

	client, err := backend.NewClient(&cfg.Backend)
	if err != nil {
		logger.Fatalf("failed to create backend client: %v", err)
	}
	logger.Printf("backend at %s", cfg.Backend.BaseURL)

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys not configured; push reminders are off")
	}

	if webpushOptions != nil && cfg.Reminder.Enabled {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
		pool.Start(ctx)

		reminders := reminder.NewService(&cfg.Reminder, appStore, client, pool)
		go reminders.Run(ctx)
		logger.Printf("reminders every %s with %d workers", cfg.Reminder.Interval, cfg.WorkerPool.Size)
	}

	router, err := api.NewRouter(&cfg.Server, appStore, client, sessions, webpushOptions)
	if err != nil {
		logger.Fatalf("failed to build router: %v", err)
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Println("Server gracefully stopped")
}
