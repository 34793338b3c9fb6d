package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gamewrld/server/audit"
	"github.com/gamewrld/server/social/chat"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatHandler exposes the messaging engine.
type ChatHandler struct {
	svc    *chat.Service
	trail  trail
	logger *zap.Logger
}

// NewChatHandler creates a new ChatHandler. rec may be nil.
func NewChatHandler(svc *chat.Service, rec audit.Recorder, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, trail: trail{rec: rec}, logger: logger}
}

type sendMessageRequest struct {
	SenderID   int64  `json:"senderId" binding:"required,gt=0"`
	ReceiverID int64  `json:"receiverId" binding:"required,gt=0"`
	Content    string `json:"content" binding:"required"`
}

type conversationQuery struct {
	UserID1 int64 `form:"userId1" binding:"required,gt=0"`
	UserID2 int64 `form:"userId2" binding:"required,gt=0"`
}

// Send handles POST /api/chat/send.
func (h *ChatHandler) Send(c *gin.Context) {
	start := time.Now()
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), req.SenderID, req.ReceiverID, req.Content)
	var auditResp interface{}
	if msg != nil {
		auditResp = gin.H{"message_id": msg.ID}
	}
	h.trail.record(c, start, audit.ActionMessageSend, req.SenderID,
		gin.H{"senderId": req.SenderID, "receiverId": req.ReceiverID}, auditResp, err)

	switch {
	case err == nil:
		c.JSON(http.StatusOK, msg)
	case errors.Is(err, chat.ErrEmptyContent), errors.Is(err, chat.ErrSelfMessage):
		abortJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrUserNotFound):
		abortJSON(c, http.StatusNotFound, err.Error())
	default:
		internalError(c, h.logger, "send message", err)
	}
}

// Conversation handles GET /api/chat/conversation?userId1=&userId2=.
func (h *ChatHandler) Conversation(c *gin.Context) {
	var q conversationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	msgs, err := h.svc.Conversation(c.Request.Context(), q.UserID1, q.UserID2)
	if err != nil {
		internalError(c, h.logger, "load conversation", err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// MarkRead handles PATCH /api/chat/mark-as-read/:id. A missing or already
// read message still answers 204.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	start := time.Now()
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	err := h.svc.MarkRead(c.Request.Context(), id)
	h.trail.record(c, start, audit.ActionMessageMarkRead, 0, gin.H{"message_id": id}, nil, err)
	if err != nil {
		internalError(c, h.logger, "mark message read", err)
		return
	}
	c.Status(http.StatusNoContent)
}
