package query

import (
	"context"
	"fmt"
	"log"

	"github.com/cenkalti/backoff/v5"

	"github.com/lizhaowen72/eventbridge/internal/events"
	"github.com/lizhaowen72/eventbridge/pkg/models"
)

// RegisterHandlers installs the projection handlers for every user event type
// on r and verifies that all of them are present afterwards.
func RegisterHandlers(r *events.Registry, u *Updater) error {
	handlers := map[models.EventType]events.Handler{
		models.EventUserCreated:      u.handle,
		models.EventUserEmailUpdated: u.handle,
		models.EventUserDeactivated:  u.handle,
	}
	for t, h := range handlers {
		if err := r.Register(t, h); err != nil {
			return fmt.Errorf("register projection handler: %w", err)
		}
	}

	for t := range handlers {
		if !r.Has(t) {
			return fmt.Errorf("projection handler missing for %s", t)
		}
	}
	log.Printf("[Projection] Registered user event handlers: count=%d", len(handlers))
	return nil
}

// handle applies one event to the projection. Anything it cannot apply is a
// permanent failure so the registry abandons it without retrying.
func (u *Updater) handle(ctx context.Context, evt models.Event) error {
	switch e := models.Concrete(evt).(type) {
	case models.UserCreated:
		return u.ApplyCreated(ctx, e.AggregateID, e.Username, e.Email, e.CreatedAt)
	case models.UserEmailUpdated:
		return u.ApplyEmailUpdated(ctx, e.AggregateID, e.NewEmail)
	case models.UserDeactivated:
		return u.ApplyDeactivated(ctx, e.AggregateID)
	default:
		return backoff.Permanent(fmt.Errorf("unsupported event %T", evt))
	}
}
