// Package chat is the direct messaging engine: sending a message, reading a
// two-party conversation and marking a message as read.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gamewrld/server/model"
	"go.uber.org/zap"
)

var (
	ErrEmptyContent = errors.New("chat: message content is empty")
	ErrSelfMessage  = errors.New("chat: cannot send a message to yourself")
	ErrUserNotFound = errors.New("chat: sender or receiver does not exist")
)

// Service is the messaging engine. It holds no state of its own.
type Service struct {
	store  Store
	limit  int
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a chat Service. limit bounds Conversation to the most
// recent messages; zero means unbounded.
func NewService(store Store, limit int, logger *zap.Logger) *Service {
	if limit < 0 {
		limit = 0
	}
	return &Service{store: store, limit: limit, logger: logger, now: time.Now}
}

// Send stores a new unread message from sender to receiver, stamped with the
// current UTC time.
func (svc *Service) Send(ctx context.Context, senderID, receiverID int64, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}
	ok, err := svc.store.UsersExist(ctx, []int64{senderID, receiverID})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	msg := &model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  svc.now().UTC(),
		IsRead:     false,
	}
	if err := svc.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	svc.logger.Debug("message sent",
		zap.Int64("message_id", msg.ID),
		zap.Int64("sender_id", senderID),
		zap.Int64("receiver_id", receiverID))
	return msg, nil
}

// Conversation returns every message between a and b, oldest first.
// The result is the same whichever order the two ids are given in.
func (svc *Service) Conversation(ctx context.Context, a, b int64) ([]model.Message, error) {
	msgs, err := svc.store.Conversation(ctx, a, b, svc.limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

// MarkRead sets is_read on the message. A missing or already read message is
// not an error.
func (svc *Service) MarkRead(ctx context.Context, messageID int64) error {
	changed, err := svc.store.MarkRead(ctx, messageID)
	if err != nil {
		return err
	}
	if changed {
		svc.logger.Debug("message read", zap.Int64("message_id", messageID))
	}
	return nil
}
