package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType is the discriminator carried by every domain event. It selects both
// the broker routing key and the registry handler.
type EventType string

const (
	EventUserCreated      EventType = "UserCreated"
	EventUserEmailUpdated EventType = "UserEmailUpdated"
	EventUserDeactivated  EventType = "UserDeactivated"
)

// UserDomain prefixes routing keys of every user event.
const UserDomain = "user"

// Envelope holds the fields shared by every domain event.
type Envelope struct {
	EventID     string    `json:"eventId"`
	AggregateID string    `json:"aggregateId"`
	OccurredOn  time.Time `json:"occurredOn"`
}

// Meta returns the envelope fields of the event.
func (e Envelope) Meta() Envelope { return e }

func newEnvelope(aggregateID string) Envelope {
	return Envelope{
		EventID:     uuid.New().String(),
		AggregateID: aggregateID,
		OccurredOn:  time.Now().UTC(),
	}
}

// Event is the closed set of user domain events. Only the variants declared in
// this package implement it; events are passed by value and never mutated after
// construction.
type Event interface {
	Meta() Envelope
	Type() EventType
	sealed()
}

// UserCreated is emitted once when a user aggregate is created.
type UserCreated struct {
	Envelope
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserEmailUpdated is emitted when a user's email changes.
type UserEmailUpdated struct {
	Envelope
	NewEmail string `json:"newEmail"`
}

// UserDeactivated is emitted when a user moves from Active to Inactive.
type UserDeactivated struct {
	Envelope
}

func (UserCreated) Type() EventType      { return EventUserCreated }
func (UserEmailUpdated) Type() EventType { return EventUserEmailUpdated }
func (UserDeactivated) Type() EventType  { return EventUserDeactivated }

func (UserCreated) sealed()      {}
func (UserEmailUpdated) sealed() {}
func (UserDeactivated) sealed()  {}

// Concrete returns evt in value form. Pointers to the variants also satisfy
// Event through their value methods; consumers switch on value types, so
// pointers are dereferenced here. A nil pointer yields nil.
func Concrete(evt Event) Event {
	switch e := evt.(type) {
	case *UserCreated:
		if e == nil {
			return nil
		}
		return *e
	case *UserEmailUpdated:
		if e == nil {
			return nil
		}
		return *e
	case *UserDeactivated:
		if e == nil {
			return nil
		}
		return *e
	}
	return evt
}

// NewUserCreated builds a UserCreated event with a fresh event id.
func NewUserCreated(userID, username, email string, createdAt time.Time) UserCreated {
	return UserCreated{
		Envelope:  newEnvelope(userID),
		Username:  username,
		Email:     email,
		CreatedAt: createdAt,
	}
}

// NewUserEmailUpdated builds a UserEmailUpdated event with a fresh event id.
func NewUserEmailUpdated(userID, newEmail string) UserEmailUpdated {
	return UserEmailUpdated{Envelope: newEnvelope(userID), NewEmail: newEmail}
}

// NewUserDeactivated builds a UserDeactivated event with a fresh event id.
func NewUserDeactivated(userID string) UserDeactivated {
	return UserDeactivated{Envelope: newEnvelope(userID)}
}

// RoutingKey returns the broker routing key for an event type,
// e.g. "user.usercreated".
func RoutingKey(domain string, t EventType) string {
	return domain + "." + strings.ToLower(string(t))
}
