package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gamewrld/server/audit"
	"github.com/gamewrld/server/config"
	"github.com/gamewrld/server/social/friend"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FriendRequestHandler exposes the friend request engine.
type FriendRequestHandler struct {
	svc    *friend.Service
	social config.SocialConfig
	trail  trail
	logger *zap.Logger
}

// NewFriendRequestHandler creates a new FriendRequestHandler. rec may be nil.
func NewFriendRequestHandler(svc *friend.Service, social config.SocialConfig, rec audit.Recorder, logger *zap.Logger) *FriendRequestHandler {
	return &FriendRequestHandler{svc: svc, social: social, trail: trail{rec: rec}, logger: logger}
}

type sendFriendRequest struct {
	SenderID   int64 `json:"senderId" binding:"required,gt=0"`
	ReceiverID int64 `json:"receiverId" binding:"required,gt=0"`
}

// Send handles POST /api/friend-request/send.
func (h *FriendRequestHandler) Send(c *gin.Context) {
	start := time.Now()
	var req sendFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	fr, err := h.svc.Send(c.Request.Context(), req.SenderID, req.ReceiverID)
	h.trail.record(c, start, audit.ActionFriendSend, req.SenderID, req, fr, err)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, fr)
	case errors.Is(err, friend.ErrSelfRequest), errors.Is(err, friend.ErrUserNotFound):
		abortJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, friend.ErrDuplicateRequest), errors.Is(err, friend.ErrAlreadyFriends):
		abortJSON(c, http.StatusConflict, err.Error())
	default:
		internalError(c, h.logger, "send friend request", err)
	}
}

// Accept handles POST /api/friend-request/accept/:id.
func (h *FriendRequestHandler) Accept(c *gin.Context) {
	h.resolve(c, audit.ActionFriendAccept, h.svc.Accept, "friend request accepted")
}

// Reject handles POST /api/friend-request/reject/:id.
func (h *FriendRequestHandler) Reject(c *gin.Context) {
	h.resolve(c, audit.ActionFriendReject, h.svc.Reject, "friend request rejected")
}

func (h *FriendRequestHandler) resolve(c *gin.Context, action string, transition func(ctx context.Context, id int64) (bool, error), okMsg string) {
	start := time.Now()
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	done, err := transition(c.Request.Context(), id)
	h.trail.record(c, start, action, 0, gin.H{"request_id": id}, gin.H{"ok": done}, err)
	if err != nil {
		internalError(c, h.logger, action, err)
		return
	}
	if !done {
		abortJSON(c, http.StatusNotFound, "friend request not found or already processed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": okMsg, "id": id})
}

// Pending handles GET /api/friend-request/pending/:user_id.
func (h *FriendRequestHandler) Pending(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	views, err := h.svc.Pending(c.Request.Context(), userID)
	if err != nil {
		internalError(c, h.logger, "list pending requests", err)
		return
	}
	if len(views) == 0 && h.social.LegacyEmptyNotFound {
		abortJSON(c, http.StatusNotFound, "no pending friend requests")
		return
	}
	c.JSON(http.StatusOK, views)
}

// Friends handles GET /api/friend-request/friends/:user_id.
func (h *FriendRequestHandler) Friends(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	views, err := h.svc.Friends(c.Request.Context(), userID)
	if err != nil {
		internalError(c, h.logger, "list friends", err)
		return
	}
	if len(views) == 0 && h.social.LegacyEmptyNotFound {
		abortJSON(c, http.StatusNotFound, "no friends found")
		return
	}
	c.JSON(http.StatusOK, views)
}
