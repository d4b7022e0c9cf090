package query

import (
	"context"

	"github.com/lizhaowen72/eventbridge/pkg/models"
)

// Service serves the read side from the projection store. Reads are
// eventually consistent with the command side.
type Service struct {
	store ViewStore
}

// NewService creates a read service over store.
func NewService(store ViewStore) *Service {
	return &Service{store: store}
}

// GetUserByID returns ErrViewNotFound when the projection has no row yet.
func (s *Service) GetUserByID(ctx context.Context, userID string) (models.UserView, error) {
	return s.store.Find(ctx, userID)
}

func (s *Service) GetUserByUsername(ctx context.Context, username string) (models.UserView, error) {
	return s.store.FindByUsername(ctx, username)
}

func (s *Service) ListUsers(ctx context.Context) ([]models.UserView, error) {
	return s.store.List(ctx)
}

// ListActiveUsers returns the users whose status is Active.
func (s *Service) ListActiveUsers(ctx context.Context) ([]models.UserView, error) {
	return s.store.ListByStatus(ctx, models.UserStatusActive)
}
