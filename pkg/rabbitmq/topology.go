package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchange is the topic exchange carrying domain events.
	DefaultExchange = "domain-events-exchange"
	// UserEventsQueue receives every user.* event.
	UserEventsQueue = "user-events-queue"
	// OrderEventsQueue is bound to order.* and reserved for a future context.
	OrderEventsQueue = "order-events-queue"
)

// Binding binds a durable queue to the exchange with topic patterns.
type Binding struct {
	Queue    string
	Patterns []string
}

// Topology describes the exchange and its queue bindings.
type Topology struct {
	Exchange string
	Bindings []Binding
}

// DefaultTopology returns the exchange with the user and order queues.
func DefaultTopology(exchange string) Topology {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return Topology{
		Exchange: exchange,
		Bindings: []Binding{
			{Queue: UserEventsQueue, Patterns: []string{"user.*"}},
			{Queue: OrderEventsQueue, Patterns: []string{"order.*"}},
		},
	}
}

// Declarer is the subset of *amqp.Channel needed to declare a topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// Declare declares the exchange, queues and bindings (idempotent).
func (t Topology) Declare(ch Declarer) error {
	if err := declareExchange(ch, t.Exchange); err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.Exchange, err)
	}
	for _, b := range t.Bindings {
		if _, err := ch.QueueDeclare(
			b.Queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.Queue, err)
		}
		for _, pattern := range b.Patterns {
			if err := ch.QueueBind(b.Queue, pattern, t.Exchange, false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.Queue, pattern, err)
			}
		}
	}
	return nil
}

func declareExchange(ch Declarer, name string) error {
	return ch.ExchangeDeclare(
		name,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}
