package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lizhaowen72/eventbridge/internal/command"
	"github.com/lizhaowen72/eventbridge/internal/query"
	"github.com/lizhaowen72/eventbridge/pkg/middleware"
	"github.com/lizhaowen72/eventbridge/pkg/models"
)

// CommandService is the write side used by the handlers.
type CommandService interface {
	CreateUser(ctx context.Context, username, email string) (string, error)
	UpdateEmail(ctx context.Context, userID, newEmail string) error
	DeactivateUser(ctx context.Context, userID string) error
}

// QueryService is the read side used by the handlers.
type QueryService interface {
	GetUserByID(ctx context.Context, userID string) (models.UserView, error)
	GetUserByUsername(ctx context.Context, username string) (models.UserView, error)
	ListUsers(ctx context.Context) ([]models.UserView, error)
	ListActiveUsers(ctx context.Context) ([]models.UserView, error)
}

// UserHandler handles user-related HTTP requests.
type UserHandler struct {
	Commands CommandService
	Queries  QueryService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(commands CommandService, queries QueryService) *UserHandler {
	return &UserHandler{Commands: commands, Queries: queries}
}

// CreateUser godoc
// @Summary      Create a new user
// @Description  Creates a user aggregate and publishes UserCreated
// @Tags         commands
// @Accept       json
// @Produce      json
// @Param        request  body      models.CreateUserRequest  true  "Create user request"
// @Success      201      {object}  models.UserCreatedResponse
// @Failure      400      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /api/command/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	log.Printf("[API] CreateUser correlation_id=%s", correlationID)

	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := h.Commands.CreateUser(c.Request.Context(), req.Username, req.Email)
	if err != nil {
		writeError(c, err, "failed to create user")
		return
	}

	log.Printf("[API] User created: id=%s correlation_id=%s", userID, correlationID)
	c.JSON(http.StatusCreated, models.UserCreatedResponse{UserID: userID, Message: "User created successfully"})
}

// UpdateEmail godoc
// @Summary      Change a user's email
// @Description  Updates the email and publishes UserEmailUpdated when it changed
// @Tags         commands
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "User ID"
// @Param        request  body      models.UpdateEmailRequest  true  "Update email request"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /api/command/users/{id}/email [put]
func (h *UserHandler) UpdateEmail(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	userID := c.Param("id")
	log.Printf("[API] UpdateEmail id=%s correlation_id=%s", userID, correlationID)

	var req models.UpdateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Commands.UpdateEmail(c.Request.Context(), userID, req.NewEmail); err != nil {
		writeError(c, err, "failed to update email")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email updated successfully"})
}

// DeactivateUser godoc
// @Summary      Deactivate a user
// @Description  Deactivates the user and publishes UserDeactivated if it was active
// @Tags         commands
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/command/users/{id}/deactivate [post]
func (h *UserHandler) DeactivateUser(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	userID := c.Param("id")
	log.Printf("[API] DeactivateUser id=%s correlation_id=%s", userID, correlationID)

	if err := h.Commands.DeactivateUser(c.Request.Context(), userID); err != nil {
		writeError(c, err, "failed to deactivate user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deactivated successfully"})
}

// GetUser godoc
// @Summary      Get a user by ID
// @Description  Returns the projected view of a user
// @Tags         queries
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  models.UserView
// @Failure      404  {object}  map[string]string
// @Router       /api/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	view, err := h.Queries.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetUserByUsername godoc
// @Summary      Get a user by username
// @Tags         queries
// @Produce      json
// @Param        username  path      string  true  "Username"
// @Success      200       {object}  models.UserView
// @Failure      404       {object}  map[string]string
// @Router       /api/users/by-username/{username} [get]
func (h *UserHandler) GetUserByUsername(c *gin.Context) {
	view, err := h.Queries.GetUserByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, err, "failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListUsers godoc
// @Summary      List all users
// @Tags         queries
// @Produce      json
// @Success      200  {array}   models.UserView
// @Failure      500  {object}  map[string]string
// @Router       /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	views, err := h.Queries.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to fetch users")
		return
	}
	c.JSON(http.StatusOK, views)
}

// ListActiveUsers godoc
// @Summary      List active users
// @Tags         queries
// @Produce      json
// @Success      200  {array}   models.UserView
// @Failure      500  {object}  map[string]string
// @Router       /api/users/active [get]
func (h *UserHandler) ListActiveUsers(c *gin.Context) {
	views, err := h.Queries.ListActiveUsers(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to fetch users")
		return
	}
	c.JSON(http.StatusOK, views)
}

func writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, command.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, command.ErrUserNotFound), errors.Is(err, query.ErrViewNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		log.Printf("[API] %s: %v correlation_id=%s", msg, err, middleware.GetCorrelationID(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
