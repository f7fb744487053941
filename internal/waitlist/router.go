package waitlist

import (
	"github.com/gin-gonic/gin"
)

// SetupWaitlistRoutes configures all waitlist-related routes. Guests are
// identified by contact email, so only stats need a token.
func SetupWaitlistRoutes(rg *gin.RouterGroup, controller *Controller, optionalAuth, auth gin.HandlerFunc) {
	waitlist := rg.Group("/waitlist")
	{
		waitlist.POST("", optionalAuth, controller.JoinWaitlist) // JOIN waitlist
		waitlist.GET("/:id", controller.GetEntry)                // GET entry status ?email=
		waitlist.POST("/:id/cancel", controller.CancelEntry)     // CANCEL entry
		waitlist.DELETE("/:id", controller.RemoveEntry)          // LEAVE waitlist ?email=
		waitlist.POST("/:id/redeem", controller.RedeemOffer)     // CHECK offer token
	}

	// Host waitlist routes
	rg.GET("/events/:id/waitlist/stats", auth, controller.GetWaitlistStats)
}
