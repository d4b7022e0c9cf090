package command

import (
	"context"
	"log"

	"github.com/lizhaowen72/eventbridge/pkg/models"
)

// EventPublisher publishes a batch of committed events and reports how many
// could not be delivered.
type EventPublisher interface {
	PublishAll(ctx context.Context, evts []models.Event) int
}

// Service handles the write-side user commands.
type Service struct {
	repo      UserRepository
	publisher EventPublisher
}

// NewService creates a command service.
func NewService(repo UserRepository, publisher EventPublisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

// CreateUser creates and saves a user, then publishes UserCreated.
func (s *Service) CreateUser(ctx context.Context, username, email string) (string, error) {
	u, err := NewUser(username, email)
	if err != nil {
		return "", err
	}
	if err := s.repo.Save(ctx, u); err != nil {
		log.Printf("[Command] Error saving user: %v", err)
		return "", err
	}
	log.Printf("[Command] User created: id=%s username=%s", u.ID(), u.Username())

	s.publishPending(ctx, u)
	return u.ID(), nil
}

// UpdateEmail changes a user's email, then publishes UserEmailUpdated.
func (s *Service) UpdateEmail(ctx context.Context, userID, newEmail string) error {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := u.UpdateEmail(newEmail); err != nil {
		return err
	}
	if len(u.PendingEvents()) == 0 {
		log.Printf("[Command] Email unchanged: id=%s", userID)
		return nil
	}
	if err := s.repo.Save(ctx, u); err != nil {
		log.Printf("[Command] Error updating email: %v", err)
		return err
	}
	log.Printf("[Command] Email updated: id=%s", userID)

	s.publishPending(ctx, u)
	return nil
}

// DeactivateUser deactivates a user, then publishes UserDeactivated.
// Deactivating an inactive user succeeds without publishing anything.
func (s *Service) DeactivateUser(ctx context.Context, userID string) error {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	u.Deactivate()
	if len(u.PendingEvents()) == 0 {
		log.Printf("[Command] User already inactive: id=%s", userID)
		return nil
	}
	if err := s.repo.Save(ctx, u); err != nil {
		log.Printf("[Command] Error deactivating user: %v", err)
		return err
	}
	log.Printf("[Command] User deactivated: id=%s", userID)

	s.publishPending(ctx, u)
	return nil
}

func (s *Service) publishPending(ctx context.Context, u *User) {
	evts := u.PendingEvents()
	log.Printf("[Command] Publishing %d events: aggregate_id=%s", len(evts), u.ID())
	s.publisher.PublishAll(ctx, evts)
	u.ClearEvents()
}
