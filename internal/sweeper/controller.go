package sweeper

import (
	"net/http"

	"hostly/internal/shared/identity"
	"hostly/internal/shared/middleware"
	"hostly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	sweeper *Sweeper
	jobs    *JobProcessor
}

// NewController creates the admin controller; jobs is nil when the
// scheduler is disabled
func NewController(sweeper *Sweeper, jobs *JobProcessor) *Controller {
	return &Controller{sweeper: sweeper, jobs: jobs}
}

// TriggerSweep handles POST /api/v1/admin/sweep
func (c *Controller) TriggerSweep(ctx *gin.Context) {
	result, err := c.sweeper.Run(ctx.Request.Context())
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Reconciliation sweep completed", result, nil)
}

// GetJobStatus handles GET /api/v1/admin/jobs
func (c *Controller) GetJobStatus(ctx *gin.Context) {
	if c.jobs == nil {
		response.RespondJSON(ctx, "success", http.StatusOK, "Background jobs disabled", gin.H{"status": "disabled"}, nil)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Background job status", c.jobs.GetJobStatus(), nil)
}

func SetupAdminRoutes(rg *gin.RouterGroup, controller *Controller, auth gin.HandlerFunc) {
	admin := rg.Group("/admin")
	admin.Use(auth, middleware.RequireRoles(identity.RoleAdmin))
	{
		admin.POST("/sweep", controller.TriggerSweep) // POST /api/v1/admin/sweep
		admin.GET("/jobs", controller.GetJobStatus)   // GET /api/v1/admin/jobs
	}
}
