package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/lizhaowen72/eventbridge/pkg/models"
)

// Wildcard is the event type of the fallback handler used when no handler is
// registered for an event's own type.
const Wildcard models.EventType = "*"

// ErrInvalidArgument is returned for an empty event type or a nil handler.
var ErrInvalidArgument = errors.New("invalid argument")

// Handler applies one event. A returned error or a panic counts as a failed
// attempt.
type Handler func(ctx context.Context, evt models.Event) error

// AbandonedSink receives events whose handler failed on every attempt.
type AbandonedSink interface {
	Abandon(ctx context.Context, evt models.Event, attempts int, cause error) error
}

// RetryPolicy bounds the attempts made for a failing handler. The delay
// between attempts grows exponentially from InitialInterval up to MaxInterval.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy makes three attempts starting at 100ms.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     2 * time.Second,
}

// Registry maps event types to handlers. It is built at start-up and read
// concurrently by every consumer; all methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[models.EventType]Handler
	retry    RetryPolicy
	sink     AbandonedSink
}

// Option configures a Registry.
type Option func(*Registry)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Registry) {
		if p.MaxAttempts == 0 {
			p.MaxAttempts = 1
		}
		r.retry = p
	}
}

// WithAbandonedSink records events that exhaust their retries. Without a
// sink they are only logged.
func WithAbandonedSink(s AbandonedSink) Option {
	return func(r *Registry) { r.sink = s }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[models.EventType]Handler),
		retry:    DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register installs h for eventType, replacing any previous handler.
func (r *Registry) Register(eventType models.EventType, h Handler) error {
	if eventType == "" {
		return fmt.Errorf("register: empty event type: %w", ErrInvalidArgument)
	}
	if h == nil {
		return fmt.Errorf("register %s: nil handler: %w", eventType, ErrInvalidArgument)
	}

	r.mu.Lock()
	_, replaced := r.handlers[eventType]
	r.handlers[eventType] = h
	r.mu.Unlock()

	if replaced {
		log.Printf("[Registry] Replaced handler: event_type=%s", eventType)
	} else {
		log.Printf("[Registry] Registered handler: event_type=%s", eventType)
	}
	return nil
}

// Unregister removes the handler for eventType if there is one.
func (r *Registry) Unregister(eventType models.EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, eventType)
}

// Has reports whether a handler is registered for eventType.
func (r *Registry) Has(eventType models.EventType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[eventType]
	return ok
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// EventTypes returns the registered event types in sorted order.
func (r *Registry) EventTypes() []models.EventType {
	r.mu.RLock()
	types := make([]models.EventType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	r.mu.RUnlock()

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (r *Registry) lookup(eventType models.EventType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[eventType]; ok {
		return h, true
	}
	if h, ok := r.handlers[Wildcard]; ok {
		log.Printf("[Registry] Unhandled event type, using wildcard handler: event_type=%s", eventType)
		return h, true
	}
	return nil, false
}

// Dispatch runs the handler for eventType. Failures never reach the caller:
// a failing handler is retried with backoff and, once the attempts are used
// up, the event is logged and handed to the abandoned sink if one is set.
func (r *Registry) Dispatch(ctx context.Context, eventType models.EventType, evt models.Event) {
	meta := evt.Meta()
	h, ok := r.lookup(eventType)
	if !ok {
		log.Printf("[Registry] Unhandled event type: event_type=%s event_id=%s aggregate_id=%s",
			eventType, meta.EventID, meta.AggregateID)
		return
	}

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, invoke(ctx, h, evt)
	},
		backoff.WithBackOff(r.backOff()),
		backoff.WithMaxTries(r.retry.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Printf("[Registry] Handler failed: event_type=%s aggregate_id=%s attempt=%d err=%v, retrying in %s",
				eventType, meta.AggregateID, attempts, err, next)
		}),
	)
	if err == nil {
		return
	}

	log.Printf("[Registry] Abandoning event: event_type=%s event_id=%s aggregate_id=%s attempts=%d err=%v",
		eventType, meta.EventID, meta.AggregateID, attempts, err)
	if r.sink == nil {
		return
	}
	if serr := r.sink.Abandon(context.WithoutCancel(ctx), evt, attempts, err); serr != nil {
		log.Printf("[Registry] Failed to record abandoned event: event_id=%s err=%v", meta.EventID, serr)
	}
}

func (r *Registry) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retry.InitialInterval
	b.MaxInterval = r.retry.MaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	return b
}

func invoke(ctx context.Context, h Handler, evt models.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h(ctx, evt)
}
