// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"hostly/internal/app"
	"hostly/internal/bookings"
	"hostly/internal/inventory"
	"hostly/internal/shared/config"
	"hostly/internal/shared/database"
	"hostly/internal/shared/middleware"
	"hostly/internal/sweeper"
	"hostly/internal/waitlist"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router holds all route dependencies
type Router struct {
	config *config.Config
	db     *database.DB
	app    *app.App
	jobs   *sweeper.JobProcessor
}

// NewRouter creates a new router instance; jobs may be nil when the
// scheduler is disabled
func NewRouter(cfg *config.Config, db *database.DB, application *app.App, jobs *sweeper.JobProcessor) *Router {
	return &Router{
		config: cfg,
		db:     db,
		app:    application,
		jobs:   jobs,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	auth := middleware.JWTAuthWithConfig(r.config)
	optionalAuth := middleware.OptionalAuthWithConfig(r.config)

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		inventory.SetupInventoryRoutes(api, inventory.NewController(r.app.Inventory), auth)
		bookings.SetupBookingRoutes(api, bookings.NewController(r.app.Bookings), auth)
		waitlist.SetupWaitlistRoutes(api, waitlist.NewController(r.app.Waitlist), optionalAuth, auth)
		sweeper.SetupAdminRoutes(api, sweeper.NewController(r.app.Sweeper, r.jobs), auth)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		// Perform health checks
		if r.db != nil {
			if err := r.db.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "unhealthy",
					"error":     err.Error(),
					"timestamp": time.Now(),
					"service":   "hostly-backend",
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "hostly-backend",
			"store":     r.config.StoreDriver,
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		})
	})

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
