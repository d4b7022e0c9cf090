package rabbitmq

import (
	"context"
	"errors"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerConfig holds configuration for setting up a consumer.
type ConsumerConfig struct {
	Topology     Topology
	QueueName    string
	ConsumerName string
	Prefetch     int
}

// ErrDeliveriesClosed reports that the broker closed the delivery channel
// while the consumer was still running.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// MessageHandler processes a delivered message.
// Return nil to ack; an error nacks without requeue.
type MessageHandler func(delivery amqp.Delivery) error

// SetupConsumer declares the topology and starts consuming from the queue
// until ctx is cancelled or the channel closes. The returned channel receives
// exactly one value when consumption stops: ctx.Err() after cancellation, or
// ErrDeliveriesClosed when the broker side went away.
func SetupConsumer(ctx context.Context, conn *Connection, cfg ConsumerConfig, handler MessageHandler) (<-chan error, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := cfg.Topology.Declare(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, err
	}

	msgs, err := ch.Consume(
		cfg.QueueName,
		cfg.ConsumerName,
		false, // auto-ack = false (manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		defer ch.Close()
		done <- consume(ctx, cfg.ConsumerName, msgs, handler)
	}()

	log.Printf("[%s] Consumer started, listening on queue: %s", cfg.ConsumerName, cfg.QueueName)
	return done, nil
}

func consume(ctx context.Context, name string, msgs <-chan amqp.Delivery, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			log.Printf("[%s] Consumer stopping: %v", name, ctx.Err())
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				log.Printf("[%s] Delivery channel closed", name)
				return ErrDeliveriesClosed
			}
			deliver(name, msg, handler)
		}
	}
}

// Acknowledger is the subset of amqp.Delivery used to settle a message.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func deliver(name string, msg amqp.Delivery, handler MessageHandler) {
	log.Printf("[%s] Received message: routing_key=%s correlation_id=%s",
		name, msg.RoutingKey, msg.CorrelationId)
	settle(name, msg, handler(msg))
}

func settle(name string, ack Acknowledger, err error) {
	if err != nil {
		log.Printf("[%s] Error processing message: %v, nacking without requeue", name, err)
		if nerr := ack.Nack(false, false); nerr != nil {
			log.Printf("[%s] Nack failed: %v", name, nerr)
		}
		return
	}
	if aerr := ack.Ack(false); aerr != nil {
		log.Printf("[%s] Ack failed: %v", name, aerr)
	}
}
