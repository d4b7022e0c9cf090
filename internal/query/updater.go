package query

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/lizhaowen72/eventbridge/pkg/models"
)

// Updater applies user events to the projection. Every operation is
// idempotent: re-applying the same event leaves the row as it is, which is
// what makes at-least-once delivery safe. Returned errors come only from the
// store and are worth retrying; a missing row is logged and skipped.
type Updater struct {
	store ViewStore
	now   func() time.Time
}

// NewUpdater creates an updater over store.
func NewUpdater(store ViewStore) *Updater {
	return &Updater{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// ApplyCreated inserts an active row unless one exists; the first writer wins.
func (u *Updater) ApplyCreated(ctx context.Context, userID, username, email string, createdAt time.Time) error {
	exists, err := u.store.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("[Projection] User view already exists, skipping creation: user_id=%s", userID)
		return nil
	}

	inserted, err := u.store.Insert(ctx, models.UserView{
		UserID:      userID,
		Username:    username,
		Email:       email,
		Status:      models.UserStatusActive,
		CreatedAt:   createdAt,
		LastUpdated: u.now(),
	})
	if err != nil {
		return err
	}
	if !inserted {
		log.Printf("[Projection] Concurrent creation won, skipping: user_id=%s", userID)
		return nil
	}
	log.Printf("[Projection] User view created: user_id=%s username=%s", userID, username)
	return nil
}

// ApplyEmailUpdated changes the row's email if the row exists and differs.
func (u *Updater) ApplyEmailUpdated(ctx context.Context, userID, newEmail string) error {
	view, err := u.store.Find(ctx, userID)
	if errors.Is(err, ErrViewNotFound) {
		log.Printf("[Projection] User view not found, skipping email update: user_id=%s", userID)
		return nil
	}
	if err != nil {
		return err
	}
	if view.Email == newEmail {
		log.Printf("[Projection] Email unchanged, skipping: user_id=%s", userID)
		return nil
	}

	updated, err := u.store.UpdateEmail(ctx, userID, newEmail, u.now())
	if err != nil {
		return err
	}
	if updated {
		log.Printf("[Projection] User email updated: user_id=%s old=%s new=%s", userID, view.Email, newEmail)
	}
	return nil
}

// ApplyDeactivated marks the row inactive if it exists and is still active.
func (u *Updater) ApplyDeactivated(ctx context.Context, userID string) error {
	view, err := u.store.Find(ctx, userID)
	if errors.Is(err, ErrViewNotFound) {
		log.Printf("[Projection] User view not found, skipping deactivation: user_id=%s", userID)
		return nil
	}
	if err != nil {
		return err
	}
	if view.Status == models.UserStatusInactive {
		log.Printf("[Projection] User view already inactive, skipping: user_id=%s", userID)
		return nil
	}

	updated, err := u.store.Deactivate(ctx, userID, u.now())
	if err != nil {
		return err
	}
	if updated {
		log.Printf("[Projection] User view deactivated: user_id=%s", userID)
	}
	return nil
}

// ViewExists reports whether a row exists for userID.
func (u *Updater) ViewExists(ctx context.Context, userID string) (bool, error) {
	return u.store.Exists(ctx, userID)
}

// GetView returns the row for userID.
func (u *Updater) GetView(ctx context.Context, userID string) (models.UserView, error) {
	return u.store.Find(ctx, userID)
}

// DeleteView removes a row. Administrative only; no event deletes rows.
func (u *Updater) DeleteView(ctx context.Context, userID string) error {
	if err := u.store.Delete(ctx, userID); err != nil {
		return err
	}
	log.Printf("[Projection] User view deleted: user_id=%s", userID)
	return nil
}
