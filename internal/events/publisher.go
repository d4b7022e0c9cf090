package events

import (
	"context"
	"errors"
	"log"

	"github.com/lizhaowen72/eventbridge/pkg/config"
	"github.com/lizhaowen72/eventbridge/pkg/models"
)

var errNoBroker = errors.New("no broker configured")

// BrokerPublisher sends an encoded event to the broker.
type BrokerPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte, correlationID string) error
}

// LocalDispatcher hands events to same-process handlers without blocking on
// their completion.
type LocalDispatcher interface {
	Enqueue(ctx context.Context, evt models.Event) bool
}

// Publisher delivers committed events locally, to the broker, or both,
// according to its delivery mode.
type Publisher struct {
	domain string
	mode   config.DeliveryMode
	local  LocalDispatcher
	broker BrokerPublisher
}

// NewPublisher creates a publisher for the user domain. local may be nil when
// mode has no local delivery, broker may be nil when it has no broker delivery.
func NewPublisher(mode config.DeliveryMode, local LocalDispatcher, broker BrokerPublisher) *Publisher {
	return &Publisher{domain: models.UserDomain, mode: mode, local: local, broker: broker}
}

// Publish delivers one event. It never fails the caller: the aggregate change
// is already committed, so every failure is logged and swallowed. It reports
// whether every configured target accepted the event.
func (p *Publisher) Publish(ctx context.Context, evt models.Event) bool {
	meta := evt.Meta()
	ok := true

	if p.mode.Local() {
		if p.local == nil || !p.local.Enqueue(ctx, evt) {
			log.Printf("[Publisher] Local delivery failed: event_type=%s event_id=%s aggregate_id=%s",
				evt.Type(), meta.EventID, meta.AggregateID)
			ok = false
		}
	}

	if p.mode.Broker() {
		if err := p.publishToBroker(ctx, evt); err != nil {
			log.Printf("[Publisher] Broker publish failed: event_type=%s event_id=%s aggregate_id=%s err=%v",
				evt.Type(), meta.EventID, meta.AggregateID, err)
			ok = false
		} else {
			log.Printf("[Publisher] Published event: event_type=%s aggregate_id=%s", evt.Type(), meta.AggregateID)
		}
	}
	return ok
}

// PublishAll publishes events in order and returns how many failed. The batch
// is not atomic: earlier events stay published when a later one fails.
func (p *Publisher) PublishAll(ctx context.Context, evts []models.Event) int {
	failed := 0
	for _, evt := range evts {
		if !p.Publish(ctx, evt) {
			failed++
		}
	}
	if failed > 0 {
		log.Printf("[Publisher] Partial publication: %d of %d events failed", failed, len(evts))
	}
	return failed
}

func (p *Publisher) publishToBroker(ctx context.Context, evt models.Event) error {
	if p.broker == nil {
		return errNoBroker
	}
	body, err := models.MarshalEvent(evt)
	if err != nil {
		return err
	}
	return p.broker.Publish(ctx, models.RoutingKey(p.domain, evt.Type()), body, models.CorrelationID(ctx))
}
