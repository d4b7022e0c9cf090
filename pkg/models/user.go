package models

import "time"

// UserStatus is the lifecycle state of a user. The only transition is
// Active to Inactive.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
)

// UserView is the read-side projection row of a user.
type UserView struct {
	UserID      string     `json:"userId" db:"user_id"`
	Username    string     `json:"username" db:"username"`
	Email       string     `json:"email" db:"email"`
	Status      UserStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	LastUpdated time.Time  `json:"lastUpdated" db:"last_updated"`
}

// CreateUserRequest is the request body for creating a user.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required" example:"alice"`
	Email    string `json:"email" binding:"required" example:"alice@example.com"`
}

// UpdateEmailRequest is the request body for changing a user's email.
type UpdateEmailRequest struct {
	NewEmail string `json:"newEmail" binding:"required" example:"alice2@example.com"`
}

// UserCreatedResponse is returned after a user is created.
type UserCreatedResponse struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}
