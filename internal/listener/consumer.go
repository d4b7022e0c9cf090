package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lizhaowen72/eventbridge/internal/events"
	"github.com/lizhaowen72/eventbridge/pkg/models"
	"github.com/lizhaowen72/eventbridge/pkg/rabbitmq"
)

// Consumer turns broker messages back into typed events and hands them to a
// dispatcher. Messages that cannot be decoded are logged and dropped; nothing
// is ever returned or raised to the transport.
type Consumer struct {
	dispatcher events.Dispatcher
	domain     string
}

// NewConsumer creates a consumer for the user domain.
func NewConsumer(d events.Dispatcher) *Consumer {
	return &Consumer{dispatcher: d, domain: models.UserDomain}
}

// OnMessage decodes msg and dispatches it. msg may be a typed models.Event,
// a generic field map, or encoded JSON text.
func (c *Consumer) OnMessage(ctx context.Context, msg any, routingKey string) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[Consumer] Recovered from panic: routing_key=%s panic=%v", routingKey, p)
		}
	}()

	evt, err := decode(msg)
	if err != nil {
		log.Printf("[Consumer] Dropping message: routing_key=%s err=%v", routingKey, err)
		return
	}

	meta := evt.Meta()
	if want := models.RoutingKey(c.domain, evt.Type()); routingKey != "" && routingKey != want {
		log.Printf("[Consumer] Routing key mismatch: routing_key=%s event_type=%s", routingKey, evt.Type())
	}
	log.Printf("[Consumer] Processing event: type=%s event_id=%s aggregate_id=%s correlation_id=%s",
		evt.Type(), meta.EventID, meta.AggregateID, models.CorrelationID(ctx))

	c.dispatcher.Dispatch(ctx, evt.Type(), evt)
}

// Handler returns a rabbitmq.MessageHandler that feeds deliveries into
// OnMessage. It always returns nil so deliveries are acked: retries happen in
// the registry, and a nack would only cause redelivery loops.
func (c *Consumer) Handler(ctx context.Context) rabbitmq.MessageHandler {
	return func(d amqp.Delivery) error {
		c.OnMessage(models.WithCorrelationID(ctx, d.CorrelationId), d.Body, d.RoutingKey)
		return nil
	}
}

func decode(msg any) (models.Event, error) {
	switch m := msg.(type) {
	case nil:
		return nil, fmt.Errorf("empty message")
	case models.Event:
		if evt := models.Concrete(m); evt != nil {
			return evt, nil
		}
		return nil, fmt.Errorf("nil %T event", m)
	case map[string]any:
		return models.EventFromMap(m)
	case []byte:
		return models.UnmarshalEvent(m)
	case json.RawMessage:
		return models.UnmarshalEvent(m)
	case string:
		return models.UnmarshalEvent([]byte(m))
	default:
		// Unknown structured value: take it through its JSON form.
		body, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("unsupported message shape %T: %w", msg, err)
		}
		return models.UnmarshalEvent(body)
	}
}
