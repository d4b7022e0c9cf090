package rabbitmq

import (
	"context"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes messages to the RabbitMQ exchange.
type Publisher struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
	timeout  time.Duration
}

// NewPublisher creates a new publisher and declares the topology.
// Messages are published as mandatory; unroutable ones are logged.
func NewPublisher(conn *Connection, topology Topology) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := topology.Declare(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}

	returns := ch.NotifyReturn(make(chan amqp.Return, 16))
	go func() {
		for r := range returns {
			log.Printf("[Publisher] Message returned unroutable: exchange=%s routing_key=%s reply=%d %s",
				r.Exchange, r.RoutingKey, r.ReplyCode, r.ReplyText)
		}
	}()

	return &Publisher{channel: ch, exchange: topology.Exchange, timeout: 10 * time.Second}, nil
}

// Publish sends a message to the exchange with the given routing key.
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte, correlationID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	log.Printf("[Publisher] Publishing event: routing_key=%s correlation_id=%s", routingKey, correlationID)

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			Body:          body,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now(),
		},
	)
}

// Close closes the publisher channel.
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
