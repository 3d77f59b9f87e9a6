package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"meal-alert-service/internal/api"
	"meal-alert-service/internal/channels"
	"meal-alert-service/internal/config"
	"meal-alert-service/internal/db"
	"meal-alert-service/internal/dispatch"
	"meal-alert-service/internal/escalation"
	"meal-alert-service/internal/kafka"
	"meal-alert-service/internal/logging"
	"meal-alert-service/internal/ws"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	// Connection registry with heartbeat
	hub := ws.NewHub(cfg.Realtime.HeartbeatInterval, logger)
	go hub.Run()

	// Channel adapters; missing credentials leave a channel unconfigured
	push := channels.NewPush(dbConn, cfg, logger)
	if !push.Configured() {
		logger.Warnf("Push channel disabled: no VAPID credentials")
	}
	mail := channels.NewEmail(dbConn, cfg, logger)
	if !mail.Configured() {
		logger.Warnf("Email channel disabled: no SMTP account")
	}
	orchestrator := dispatch.New(
		[]channels.Channel{channels.NewRealtime(hub), push, mail},
		dbConn, logger, cfg.Delivery.BackoffBase, cfg.Delivery.RetryPause,
	)

	// Escalation scheduler
	scheduler := escalation.New(dbConn, dbConn, orchestrator, logger,
		cfg.Escalation.ScanInterval, cfg.Escalation.AgeThreshold, cfg.Delivery.MaxRetries)
	if err := scheduler.Start(); err != nil {
		logger.Errorf("Failed to start escalation scheduler: %v", err)
		log.Fatalf("Escalation scheduler failed: %v", err)
	}

	// Kafka consumer for urgent-order events
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	consumer := kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID,
		dbConn, orchestrator, logger, cfg.Delivery.MaxRetries)
	consumer.Start(ctx, &wg)

	// API server
	wsHandler := ws.NewHandler(hub, cfg.Auth.JWTSecret, logger)
	handler := api.NewHandler(dbConn, orchestrator, logger, cfg.Delivery.MaxRetries)
	router := api.NewRouter(handler, wsHandler, logger, cfg)
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	cancel()
	scheduler.Stop()
	if err := consumer.Close(); err != nil {
		logger.Errorf("Kafka consumer close failed: %v", err)
	}
	hub.Stop()
	wg.Wait()
	logger.Infof("Service stopped")
}
