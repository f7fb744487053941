package bookings

import (
	"errors"
	"io"
	"net/http"

	"hostly/internal/shared/apperr"
	"hostly/internal/shared/identity"
	"hostly/internal/shared/middleware"
	"hostly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// CreateBooking handles POST /api/v1/bookings
func (c *Controller) CreateBooking(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var req CreateBookingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	booking, redirect, err := c.service.CreateBooking(ctx.Request.Context(), actor, req)
	if redirect != nil {
		response.RespondJSON(ctx, "error", http.StatusConflict, "Event is sold out", redirect, response.ErrorDetail{
			Code: apperr.Code(apperr.ErrInsufficientCapacity),
		})
		return
	}
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	message := "Booking request sent to the host"
	if booking.IsApproved() {
		message = "Booking confirmed successfully"
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, message, booking, nil)
}

// GetBooking handles GET /api/v1/bookings/:id
func (c *Controller) GetBooking(ctx *gin.Context) {
	actor, bookingID, ok := actorAndBooking(ctx)
	if !ok {
		return
	}

	booking, err := c.service.GetBooking(ctx.Request.Context(), actor, bookingID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully", booking, nil)
}

// ApproveBooking handles POST /api/v1/bookings/:id/approve
func (c *Controller) ApproveBooking(ctx *gin.Context) {
	actor, bookingID, ok := actorAndBooking(ctx)
	if !ok {
		return
	}

	booking, err := c.service.ApproveBooking(ctx.Request.Context(), actor, bookingID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking approved", booking, nil)
}

// DeclineBooking handles POST /api/v1/bookings/:id/decline
func (c *Controller) DeclineBooking(ctx *gin.Context) {
	actor, bookingID, ok := actorAndBooking(ctx)
	if !ok {
		return
	}
	req, ok := bindTransition(ctx)
	if !ok {
		return
	}

	booking, err := c.service.DeclineBooking(ctx.Request.Context(), actor, bookingID, req.Reason)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking declined", booking, nil)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (c *Controller) CancelBooking(ctx *gin.Context) {
	actor, bookingID, ok := actorAndBooking(ctx)
	if !ok {
		return
	}
	req, ok := bindTransition(ctx)
	if !ok {
		return
	}

	booking, err := c.service.CancelBooking(ctx.Request.Context(), actor, bookingID, req.Reason)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking cancelled successfully", booking, nil)
}

// CompleteBooking handles POST /api/v1/bookings/:id/complete
func (c *Controller) CompleteBooking(ctx *gin.Context) {
	actor, bookingID, ok := actorAndBooking(ctx)
	if !ok {
		return
	}

	booking, err := c.service.CompleteBooking(ctx.Request.Context(), actor, bookingID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking completed", booking, nil)
}

// GetUserBookings handles GET /api/v1/users/bookings
func (c *Controller) GetUserBookings(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	var query BookingListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	list, err := c.service.ListMyBookings(ctx.Request.Context(), actor, query)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved successfully", list, nil)
}

// GetEventBookings handles GET /api/v1/events/:id/bookings
func (c *Controller) GetEventBookings(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	eventID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return
	}

	var query BookingListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	list, err := c.service.ListEventBookings(ctx.Request.Context(), actor, eventID, query)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Event bookings retrieved successfully", list, nil)
}

func requireActor(ctx *gin.Context) (identity.Actor, bool) {
	actor, ok := middleware.ActorFrom(ctx)
	if !ok {
		response.RespondError(ctx, apperr.ErrUnauthenticated)
		return identity.Actor{}, false
	}
	return actor, true
}

func actorAndBooking(ctx *gin.Context) (identity.Actor, uuid.UUID, bool) {
	actor, ok := requireActor(ctx)
	if !ok {
		return identity.Actor{}, uuid.Nil, false
	}
	bookingID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid booking ID", nil, err.Error())
		return identity.Actor{}, uuid.Nil, false
	}
	return actor, bookingID, true
}

// bindTransition accepts an empty body
func bindTransition(ctx *gin.Context) (TransitionRequest, bool) {
	var req TransitionRequest
	if ctx.Request.ContentLength == 0 {
		return req, true
	}
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return req, false
	}
	return req, true
}
