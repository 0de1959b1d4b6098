package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sratov/TimeBankingBot/internal/http/handlers/common"
	"github.com/sratov/TimeBankingBot/internal/models"
)

// FriendUseCase - операции графа друзей.
type FriendUseCase interface {
	Request(ctx context.Context, fromID, toID uuid.UUID) (*models.Friendship, error)
	Accept(ctx context.Context, requestID, actorID uuid.UUID) (*models.Friendship, error)
	Reject(ctx context.Context, requestID, actorID uuid.UUID) error
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.PublicUser, error)
	ListPending(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error)
}

// FriendHandler обслуживает /friends.
type FriendHandler struct {
	friends FriendUseCase
}

// NewFriendHandler создаёт хэндлер.
func NewFriendHandler(friends FriendUseCase) *FriendHandler {
	return &FriendHandler{friends: friends}
}

// List обрабатывает GET /friends.
func (h *FriendHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	friends, err := h.friends.ListFriends(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, friends)
}

// Pending обрабатывает GET /friends/pending.
func (h *FriendHandler) Pending(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	requests, err := h.friends.ListPending(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

// Request обрабатывает POST /friends/requests.
func (h *FriendHandler) Request(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req struct {
		UserID uuid.UUID `json:"user_id" binding:"required"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	friendship, err := h.friends.Request(c.Request.Context(), userID, req.UserID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, friendship)
}

// Accept обрабатывает POST /friends/:id/accept.
func (h *FriendHandler) Accept(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	friendship, err := h.friends.Accept(c.Request.Context(), requestID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, friendship)
}

// Reject обрабатывает POST /friends/:id/reject.
func (h *FriendHandler) Reject(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.friends.Reject(c.Request.Context(), requestID, userID); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "заявка отклонена"})
}
