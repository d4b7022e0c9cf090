package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lizhaowen72/eventbridge/internal/deadletter"
	"github.com/lizhaowen72/eventbridge/internal/events"
	"github.com/lizhaowen72/eventbridge/internal/listener"
	"github.com/lizhaowen72/eventbridge/internal/query"
	"github.com/lizhaowen72/eventbridge/pkg/config"
	"github.com/lizhaowen72/eventbridge/pkg/rabbitmq"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[Projection] Starting projection-consumer...")

	cfg, err := config.LoadForService("projection")
	if err != nil {
		log.Fatalf("[Projection] Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[Projection] Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, db, err := query.OpenStore(ctx, cfg.ProjectionDriver, cfg.ProjectionDSN)
	if err != nil {
		log.Fatalf("[Projection] Failed to open projection store: %v", err)
	}
	defer db.Close()

	opts := []events.Option{events.WithRetryPolicy(events.RetryPolicy{
		MaxAttempts:     cfg.RetryMaxAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
	})}
	if cfg.DeadLetterPath != "" {
		journal, err := deadletter.Open(cfg.DeadLetterPath)
		if err != nil {
			log.Fatalf("[Projection] Failed to open dead letter journal: %v", err)
		}
		log.Printf("[Projection] Recording abandoned events to %s", journal.Path())
		opts = append(opts, events.WithAbandonedSink(journal))
	}

	registry := events.NewRegistry(opts...)
	if err := query.RegisterHandlers(registry, query.NewUpdater(store)); err != nil {
		log.Fatalf("[Projection] Failed to register handlers: %v", err)
	}

	rmqConn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("[Projection] Failed to connect to RabbitMQ: %v", err)
	}
	defer rmqConn.Close()

	consumer := listener.NewConsumer(registry)

	consumerCfg := rabbitmq.ConsumerConfig{
		Topology:     rabbitmq.DefaultTopology(cfg.EventsExchange),
		QueueName:    rabbitmq.UserEventsQueue,
		ConsumerName: "projection-consumer",
		Prefetch:     10,
	}

	done, err := rabbitmq.SetupConsumer(ctx, rmqConn, consumerCfg, consumer.Handler(ctx))
	if err != nil {
		log.Fatalf("[Projection] Failed to setup consumer: %v", err)
	}

	log.Println("[Projection] Consumer is running. Waiting for messages...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Println("[Projection] Shutting down...")
		cancel()
		<-done
	case err := <-done:
		// Deferred cleanup does not run under log.Fatalf.
		cancel()
		_ = rmqConn.Close()
		_ = db.Close()
		log.Fatalf("[Projection] Consumer stopped unexpectedly: %v", err)
	}
}
