package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/lizhaowen72/eventbridge/pkg/middleware"
)

// NewRouter creates and configures the Gin router.
func NewRouter(h *UserHandler) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CorrelationID())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	commands := r.Group("/api/command/users")
	commands.POST("", h.CreateUser)
	commands.PUT("/:id/email", h.UpdateEmail)
	commands.POST("/:id/deactivate", h.DeactivateUser)

	users := r.Group("/api/users")
	users.GET("", h.ListUsers)
	users.GET("/active", h.ListActiveUsers)
	users.GET("/by-username/:username", h.GetUserByUsername)
	users.GET("/:id", h.GetUser)

	return r
}
