package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sratov/TimeBankingBot/internal/http/handlers/common"
	"github.com/sratov/TimeBankingBot/internal/models"
	"github.com/sratov/TimeBankingBot/internal/service"
)

// ListingUseCase - операции над объявлениями.
type ListingUseCase interface {
	Create(ctx context.Context, creatorID uuid.UUID, in service.CreateListingInput) (*models.Listing, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	List(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error)
	Apply(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error)
	Reject(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error)
	Accept(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error)
	Complete(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error)
	Confirm(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error)
	Cancel(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error)
}

type transitionFunc func(ctx context.Context, listingID, actorID uuid.UUID) (*models.Listing, error)

// ListingHandler обслуживает /listings.
type ListingHandler struct {
	listings ListingUseCase
}

// NewListingHandler создаёт хэндлер.
func NewListingHandler(listings ListingUseCase) *ListingHandler {
	return &ListingHandler{listings: listings}
}

// List обрабатывает GET /listings?status=&type=&limit=&offset=.
func (h *ListingHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	filter := models.ListingFilter{Limit: limit, Offset: offset}

	if raw := c.Query("status"); raw != "" {
		status := models.ListingStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("type"); raw != "" {
		typ := models.ListingType(raw)
		filter.Type = &typ
	}

	items, err := h.listings.List(c.Request.Context(), filter)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// Get обрабатывает GET /listings/:id.
func (h *ListingHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	listing, err := h.listings.Get(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}

// Create обрабатывает POST /listings.
func (h *ListingHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Hours       float64 `json:"hours"`
		Type        string  `json:"listing_type"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	listing, err := h.listings.Create(c.Request.Context(), userID, service.CreateListingInput{
		Title:       req.Title,
		Description: req.Description,
		Hours:       req.Hours,
		Type:        models.ListingType(req.Type),
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// Apply обрабатывает POST /listings/:id/apply.
func (h *ListingHandler) Apply(c *gin.Context) { h.transition(c, h.listings.Apply) }

// Reject обрабатывает POST /listings/:id/reject.
func (h *ListingHandler) Reject(c *gin.Context) { h.transition(c, h.listings.Reject) }

// Accept обрабатывает POST /listings/:id/accept.
func (h *ListingHandler) Accept(c *gin.Context) { h.transition(c, h.listings.Accept) }

// Complete обрабатывает POST /listings/:id/complete.
func (h *ListingHandler) Complete(c *gin.Context) { h.transition(c, h.listings.Complete) }

// Confirm обрабатывает POST /listings/:id/confirm.
func (h *ListingHandler) Confirm(c *gin.Context) { h.transition(c, h.listings.Confirm) }

// Cancel обрабатывает POST /listings/:id/cancel.
func (h *ListingHandler) Cancel(c *gin.Context) { h.transition(c, h.listings.Cancel) }

func (h *ListingHandler) transition(c *gin.Context, fn transitionFunc) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	listingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	listing, err := fn(c.Request.Context(), listingID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}
