package bookings

import (
	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures all booking-related routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller, auth gin.HandlerFunc) {
	// Booking routes
	bookings := rg.Group("/bookings")
	bookings.Use(auth)
	{
		// Core booking operations
		bookings.POST("", controller.CreateBooking)                // POST /api/v1/bookings
		bookings.GET("/:id", controller.GetBooking)                // GET /api/v1/bookings/:id
		bookings.POST("/:id/approve", controller.ApproveBooking)   // POST /api/v1/bookings/:id/approve
		bookings.POST("/:id/decline", controller.DeclineBooking)   // POST /api/v1/bookings/:id/decline
		bookings.POST("/:id/cancel", controller.CancelBooking)     // POST /api/v1/bookings/:id/cancel
		bookings.POST("/:id/complete", controller.CompleteBooking) // POST /api/v1/bookings/:id/complete
	}

	// User-specific booking routes
	users := rg.Group("/users")
	users.Use(auth)
	{
		users.GET("/bookings", controller.GetUserBookings) // GET /api/v1/users/bookings
	}

	// Host view of an event's bookings
	rg.GET("/events/:id/bookings", auth, controller.GetEventBookings) // GET /api/v1/events/:id/bookings
}

// Route definitions for reference:
//
// BOOKING CREATION
// POST   /api/v1/bookings                             - Request seats for an event
// Request body: { "event_id": "...", "seat_count": 2 }
// Waitlist offer: { "event_id": "...", "offer": { "entry_id": "...", "token": "..." } }
// A sold out event answers 409 with a waitlist redirect.
//
// HOST TRANSITIONS
// POST   /api/v1/bookings/:id/approve                 - Pending -> Approved, records the charge
// POST   /api/v1/bookings/:id/decline                 - Pending -> Declined, frees seats
// POST   /api/v1/bookings/:id/complete                - Approved -> Completed
//
// BOOKING CANCELLATION
// POST   /api/v1/bookings/:id/cancel                  - Requester or host, frees seats
//
// USER BOOKINGS
// GET    /api/v1/users/bookings?page=1&limit=10       - Get user's bookings with pagination
//
// Key Flow:
// 1. Guest requests seats with POST /bookings
// 2. Seats are reserved in the event ledger; instant events confirm immediately
// 3. Host approves or declines pending requests
// 4. Freed seats are offered to the waitlist in position order
// 5. Offered guests redeem with POST /bookings carrying the offer token
