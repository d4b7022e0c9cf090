package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lizhaowen72/eventbridge/pkg/models"
)

// User is the write-side aggregate. Every mutation appends a pending event;
// pending events are not persisted and are drained once by the command
// service after the user is saved.
type User struct {
	id        string
	username  string
	email     string
	status    models.UserStatus
	createdAt time.Time

	pending []models.Event
}

// NewUser creates an active user with a fresh id and records UserCreated.
func NewUser(username, email string) (*User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("username is required: %w", ErrInvalidArgument)
	}
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("email is required: %w", ErrInvalidArgument)
	}

	u := &User{
		id:        uuid.New().String(),
		username:  username,
		email:     email,
		status:    models.UserStatusActive,
		createdAt: time.Now().UTC(),
	}
	u.record(models.NewUserCreated(u.id, u.username, u.email, u.createdAt))
	return u, nil
}

// RestoreUser rebuilds a user from storage without recording events.
func RestoreUser(id, username, email string, status models.UserStatus, createdAt time.Time) *User {
	return &User{id: id, username: username, email: email, status: status, createdAt: createdAt}
}

func (u *User) ID() string                { return u.id }
func (u *User) Username() string          { return u.username }
func (u *User) Email() string             { return u.email }
func (u *User) Status() models.UserStatus { return u.status }
func (u *User) CreatedAt() time.Time      { return u.createdAt }

// UpdateEmail changes the email and records UserEmailUpdated. Setting the
// current email again records nothing. The address is not validated.
func (u *User) UpdateEmail(newEmail string) error {
	if strings.TrimSpace(newEmail) == "" {
		return fmt.Errorf("new email is required: %w", ErrInvalidArgument)
	}
	if newEmail == u.email {
		return nil
	}
	u.email = newEmail
	u.record(models.NewUserEmailUpdated(u.id, newEmail))
	return nil
}

// Deactivate moves an active user to Inactive and records UserDeactivated.
// It is a no-op for a user that is already inactive.
func (u *User) Deactivate() {
	if u.status == models.UserStatusInactive {
		return
	}
	u.status = models.UserStatusInactive
	u.record(models.NewUserDeactivated(u.id))
}

// PendingEvents returns a copy of the events recorded since the last clear.
func (u *User) PendingEvents() []models.Event {
	out := make([]models.Event, len(u.pending))
	copy(out, u.pending)
	return out
}

// ClearEvents drops the pending events.
func (u *User) ClearEvents() {
	u.pending = nil
}

func (u *User) record(evt models.Event) {
	u.pending = append(u.pending, evt)
}
