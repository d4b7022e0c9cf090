package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lizhaowen72/eventbridge/internal/api"
	"github.com/lizhaowen72/eventbridge/internal/command"
	"github.com/lizhaowen72/eventbridge/internal/deadletter"
	"github.com/lizhaowen72/eventbridge/internal/events"
	"github.com/lizhaowen72/eventbridge/internal/query"
	"github.com/lizhaowen72/eventbridge/pkg/config"
	"github.com/lizhaowen72/eventbridge/pkg/postgres"
	"github.com/lizhaowen72/eventbridge/pkg/rabbitmq"

	_ "github.com/lizhaowen72/eventbridge/docs"
)

// @title           User Event Sync API
// @version         1.0
// @description     Command and query API for users. Commands publish domain events that keep the read projection in sync.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[API] Starting api-service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}
	log.Printf("[API] Event delivery mode: %s", cfg.DeliveryMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Write side
	db, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, "api"); err != nil {
		log.Fatalf("[API] Failed to run migrations: %v", err)
	}

	// Read side
	store, viewDB, err := query.OpenStore(ctx, cfg.ProjectionDriver, cfg.ProjectionDSN)
	if err != nil {
		log.Fatalf("[API] Failed to open projection store: %v", err)
	}
	defer viewDB.Close()

	var local events.LocalDispatcher
	if cfg.DeliveryMode.Local() {
		registry := newRegistry(cfg)

		if err := query.RegisterHandlers(registry, query.NewUpdater(store)); err != nil {
			log.Fatalf("[API] Failed to register projection handlers: %v", err)
		}

		bus := events.NewLocalBus(registry, cfg.LocalBusBuffer, cfg.LocalBusWorkers)
		bus.Start(ctx)
		defer bus.Stop()
		local = bus
	}

	var broker events.BrokerPublisher
	if cfg.DeliveryMode.Broker() {
		rmqConn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("[API] Failed to connect to RabbitMQ: %v", err)
		}
		defer rmqConn.Close()

		publisher, err := rabbitmq.NewPublisher(rmqConn, rabbitmq.DefaultTopology(cfg.EventsExchange))
		if err != nil {
			log.Fatalf("[API] Failed to create publisher: %v", err)
		}
		defer publisher.Close()
		broker = publisher
	}

	commands := command.NewService(
		command.NewSQLUserRepository(db),
		events.NewPublisher(cfg.DeliveryMode, local, broker),
	)
	handler := api.NewUserHandler(commands, query.NewService(store))
	router := api.NewRouter(handler)

	// HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("[API] Listening on port %s", cfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[API] Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Server forced to shutdown: %v", err)
	}
	log.Println("[API] Server exited gracefully")
}

func newRegistry(cfg *config.Config) *events.Registry {
	opts := []events.Option{events.WithRetryPolicy(events.RetryPolicy{
		MaxAttempts:     cfg.RetryMaxAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
	})}
	if cfg.DeadLetterPath == "" {
		return events.NewRegistry(opts...)
	}

	journal, err := deadletter.Open(cfg.DeadLetterPath)
	if err != nil {
		log.Fatalf("[API] Failed to open dead letter journal: %v", err)
	}
	log.Printf("[API] Recording abandoned events to %s", journal.Path())
	opts = append(opts, events.WithAbandonedSink(journal))
	return events.NewRegistry(opts...)
}
