package inventory

import (
	"hostly/internal/shared/identity"
	"hostly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupInventoryRoutes(router *gin.RouterGroup, controller Controller, auth gin.HandlerFunc) {
	// Public availability for browsing
	router.GET("/events/:id/availability", controller.GetAvailability) // GET /api/v1/events/:id/availability

	hostEvents := router.Group("/events")
	hostEvents.Use(auth, middleware.RequireRoles(identity.RoleHost, identity.RoleAdmin))
	{
		hostEvents.POST("", controller.PublishEvent)        // POST /api/v1/events
		hostEvents.POST("/:id/close", controller.CloseEvent) // POST /api/v1/events/:id/close
	}
}
