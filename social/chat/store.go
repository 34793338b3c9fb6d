package chat

import (
	"context"
	"fmt"

	"github.com/gamewrld/server/model"
	"gorm.io/gorm"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/gamewrld/server/social/chat Store

// Store is the persistence boundary of the messaging engine.
type Store interface {
	// UsersExist reports whether every id names an existing user.
	UsersExist(ctx context.Context, ids []int64) (bool, error)
	CreateMessage(ctx context.Context, msg *model.Message) error
	// Conversation returns the messages exchanged between a and b in either
	// direction, ordered by timestamp then id. A positive limit keeps only the
	// most recent messages.
	Conversation(ctx context.Context, a, b int64, limit int) ([]model.Message, error)
	// MarkRead flips is_read on an unread message and reports whether a row changed.
	MarkRead(ctx context.Context, id int64) (bool, error)
}

// GormStore implements Store on top of gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Store backed by db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) UsersExist(ctx context.Context, ids []int64) (bool, error) {
	uniq := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		uniq[id] = struct{}{}
	}
	if len(uniq) == 0 {
		return true, nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
		return false, fmt.Errorf("chat: lookup users: %w", err)
	}
	return int(n) == len(uniq), nil
}

func (s *GormStore) CreateMessage(ctx context.Context, msg *model.Message) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("chat: create message: %w", err)
	}
	return nil
}

func (s *GormStore) Conversation(ctx context.Context, a, b int64, limit int) ([]model.Message, error) {
	q := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a)

	msgs := []model.Message{}
	if limit <= 0 {
		if err := q.Order("timestamp ASC, id ASC").Find(&msgs).Error; err != nil {
			return nil, fmt.Errorf("chat: conversation %d/%d: %w", a, b, err)
		}
		return msgs, nil
	}

	if err := q.Order("timestamp DESC, id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("chat: conversation %d/%d: %w", a, b, err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *GormStore) MarkRead(ctx context.Context, id int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ? AND is_read = ?", id, false).
		Update("is_read", true)
	if res.Error != nil {
		return false, fmt.Errorf("chat: mark read %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}
