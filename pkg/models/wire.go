package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingEventType is returned when a message carries no eventType field.
	ErrMissingEventType = errors.New("missing eventType")
	// ErrUnknownEventType is returned when eventType names no known variant.
	ErrUnknownEventType = errors.New("unknown eventType")
	// ErrMissingAggregateID is returned when a message names no aggregate.
	ErrMissingAggregateID = errors.New("missing aggregateId")
	// ErrMissingNewEmail is returned when a UserEmailUpdated carries no newEmail.
	ErrMissingNewEmail = errors.New("missing newEmail")
)

// wireEvent is the transport-neutral JSON body of an event. It carries no
// producer type names; eventType is the only discriminator.
type wireEvent struct {
	EventID     string     `json:"eventId"`
	EventType   EventType  `json:"eventType"`
	AggregateID string     `json:"aggregateId"`
	UserID      string     `json:"userId,omitempty"`
	OccurredOn  time.Time  `json:"occurredOn"`
	Username    string     `json:"username,omitempty"`
	Email       string     `json:"email,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	NewEmail    string     `json:"newEmail,omitempty"`
}

// MarshalEvent encodes an event into its wire form.
func MarshalEvent(evt Event) ([]byte, error) {
	evt = Concrete(evt)
	if evt == nil {
		return nil, fmt.Errorf("marshal nil event: %w", ErrUnknownEventType)
	}
	meta := evt.Meta()
	w := wireEvent{
		EventID:     meta.EventID,
		EventType:   evt.Type(),
		AggregateID: meta.AggregateID,
		UserID:      meta.AggregateID,
		OccurredOn:  meta.OccurredOn,
	}
	switch e := evt.(type) {
	case UserCreated:
		createdAt := e.CreatedAt
		w.Username = e.Username
		w.Email = e.Email
		w.CreatedAt = &createdAt
	case UserEmailUpdated:
		w.NewEmail = e.NewEmail
	case UserDeactivated:
	default:
		return nil, fmt.Errorf("marshal %T: %w", evt, ErrUnknownEventType)
	}
	return json.Marshal(w)
}

// UnmarshalEvent decodes raw JSON text into a typed event.
func UnmarshalEvent(data []byte) (Event, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode event body: %w", err)
	}
	return EventFromMap(fields)
}

// EventFromMap materializes a typed event from a generic field mapping by
// switching on its eventType field.
func EventFromMap(fields map[string]any) (Event, error) {
	raw, ok := fields["eventType"]
	if !ok || raw == nil {
		return nil, ErrMissingEventType
	}
	name, ok := raw.(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("eventType %v: %w", raw, ErrMissingEventType)
	}

	switch EventType(name) {
	case EventUserCreated, EventUserEmailUpdated, EventUserDeactivated:
	default:
		return nil, fmt.Errorf("eventType %q: %w", name, ErrUnknownEventType)
	}

	// Re-encode so the typed fields (timestamps in particular) go through the
	// same JSON rules as a raw body.
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("re-encode fields: %w", err)
	}
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("decode %s fields: %w", name, err)
	}
	return w.event()
}

func (w wireEvent) event() (Event, error) {
	env := Envelope{
		EventID:     w.EventID,
		AggregateID: w.AggregateID,
		OccurredOn:  w.OccurredOn,
	}
	if env.AggregateID == "" {
		env.AggregateID = w.UserID
	}
	if env.AggregateID == "" {
		return nil, fmt.Errorf("%s event %s: %w", w.EventType, w.EventID, ErrMissingAggregateID)
	}

	switch w.EventType {
	case EventUserCreated:
		e := UserCreated{Envelope: env, Username: w.Username, Email: w.Email}
		if w.CreatedAt != nil {
			e.CreatedAt = *w.CreatedAt
		}
		return e, nil
	case EventUserEmailUpdated:
		if w.NewEmail == "" {
			return nil, fmt.Errorf("%s event %s: %w", w.EventType, w.EventID, ErrMissingNewEmail)
		}
		return UserEmailUpdated{Envelope: env, NewEmail: w.NewEmail}, nil
	case EventUserDeactivated:
		return UserDeactivated{Envelope: env}, nil
	}
	return nil, fmt.Errorf("eventType %q: %w", w.EventType, ErrUnknownEventType)
}
