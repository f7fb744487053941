package waitlist

import (
	"net/http"

	"hostly/internal/shared/middleware"
	"hostly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{
		service: service,
	}
}

func (c *Controller) JoinWaitlist(ctx *gin.Context) {
	var request JoinWaitlistRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	// Guests may join without an account
	var userID *uuid.UUID
	if actor, ok := middleware.ActorFrom(ctx); ok {
		userID = &actor.UserID
	}

	entry, err := c.service.Join(ctx.Request.Context(), request, userID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Successfully joined waitlist", entry, nil)
}

func (c *Controller) CancelEntry(ctx *gin.Context) {
	entryID, ok := parseEntryID(ctx)
	if !ok {
		return
	}

	var request ContactRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	entry, err := c.service.Cancel(ctx.Request.Context(), entryID, Contact{Email: request.Email})
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist entry cancelled", entry, nil)
}

func (c *Controller) RemoveEntry(ctx *gin.Context) {
	entryID, ok := parseEntryID(ctx)
	if !ok {
		return
	}

	email := ctx.Query("email")
	if email == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "email query parameter is required", nil, nil)
		return
	}

	if err := c.service.Remove(ctx.Request.Context(), entryID, Contact{Email: email}); err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Successfully left waitlist", nil, nil)
}

func (c *Controller) GetEntry(ctx *gin.Context) {
	entryID, ok := parseEntryID(ctx)
	if !ok {
		return
	}

	email := ctx.Query("email")
	if email == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "email query parameter is required", nil, nil)
		return
	}

	entry, err := c.service.GetEntry(ctx.Request.Context(), entryID, Contact{Email: email})
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist entry retrieved", entry, nil)
}

// RedeemOffer checks an offer link; the booking itself is created through
// the bookings endpoint with the same token.
func (c *Controller) RedeemOffer(ctx *gin.Context) {
	entryID, ok := parseEntryID(ctx)
	if !ok {
		return
	}

	token := ctx.Query("token")
	if token == "" {
		var request RedeemOfferRequest
		if err := ctx.ShouldBindJSON(&request); err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "offer token is required", nil, err.Error())
			return
		}
		token = request.Token
	}

	auth, err := c.service.RedeemOffer(ctx.Request.Context(), entryID, token)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Offer is valid", auth, nil)
}

func (c *Controller) GetWaitlistStats(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return
	}

	actor, ok := middleware.ActorFrom(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	stats, err := c.service.Stats(ctx.Request.Context(), actor, eventID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist stats retrieved", stats, nil)
}

func parseEntryID(ctx *gin.Context) (uuid.UUID, bool) {
	entryID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid waitlist entry ID", nil, err.Error())
		return uuid.Nil, false
	}
	return entryID, true
}
