// Package friend implements the friend request lifecycle and the symmetric
// friendship it produces.
//
// A request starts Pending. Accept turns it into two Friend rows, (sender,
// receiver) and (receiver, sender), and deletes the request. Reject marks it
// Rejected and keeps the row. Both transitions are conditional updates on
// status = Pending, so concurrent callers race in the database and exactly
// one of them wins.
package friend

import (
	"context"
	"errors"
	"fmt"
	"time"

	dbadapter "github.com/gamewrld/server/db"
	"github.com/gamewrld/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSelfRequest      = errors.New("friend: cannot send a friend request to yourself")
	ErrUserNotFound     = errors.New("friend: sender or receiver does not exist")
	ErrAlreadyFriends   = errors.New("friend: users are already friends")
	ErrDuplicateRequest = errors.New("friend: a pending request already exists")
)

// RequestView is a pending request joined with both usernames.
type RequestView struct {
	ID           int64                     `json:"id"`
	SenderID     int64                     `json:"senderId"`
	SenderName   string                    `json:"senderName"`
	ReceiverID   int64                     `json:"receiverId"`
	ReceiverName string                    `json:"receiverName"`
	Status       model.FriendRequestStatus `json:"status"`
	SentAt       time.Time                 `json:"sentAt"`
}

// FriendView is one friendship row joined with both usernames.
type FriendView struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	UserName   string    `json:"userName"`
	FriendID   int64     `json:"friendId"`
	FriendName string    `json:"friendName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Service runs the friend request state machine against the database.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a new friend Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Send creates a Pending request from sender to receiver.
func (svc *Service) Send(ctx context.Context, senderID, receiverID int64) (*model.FriendRequest, error) {
	if senderID == receiverID {
		return nil, ErrSelfRequest
	}
	db := svc.db.WithContext(ctx)

	var n int64
	if err := db.Model(&model.User{}).Where("id IN ?", []int64{senderID, receiverID}).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("friend: lookup users: %w", err)
	}
	if n != 2 {
		return nil, ErrUserNotFound
	}

	friends, err := hasEdge(db, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("friend: lookup friendship: %w", err)
	}
	if friends {
		return nil, ErrAlreadyFriends
	}

	var pending int64
	if err := db.Model(&model.FriendRequest{}).
		Where("sender_id = ? AND receiver_id = ? AND status = ?", senderID, receiverID, model.FriendRequestPending).
		Count(&pending).Error; err != nil {
		return nil, fmt.Errorf("friend: lookup pending: %w", err)
	}
	if pending > 0 {
		return nil, ErrDuplicateRequest
	}

	req := &model.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     model.FriendRequestPending,
		SentAt:     time.Now().UTC(),
		PendingKey: model.PendingKeyFor(senderID, receiverID),
	}
	if err := db.Create(req).Error; err != nil {
		// Lost a race with an identical Send; the pending-key index caught it.
		if dbadapter.IsUniqueViolation(err) {
			return nil, ErrDuplicateRequest
		}
		return nil, fmt.Errorf("friend: create request: %w", err)
	}

	svc.logger.Info("friend request sent",
		zap.Int64("request_id", req.ID),
		zap.Int64("sender_id", senderID),
		zap.Int64("receiver_id", receiverID))
	return req, nil
}

// Accept transitions a Pending request to Accepted, stores the friendship in
// both directions and removes the request, all in one transaction. It
// reports false when the request does not exist or is no longer Pending.
func (svc *Service) Accept(ctx context.Context, requestID int64) (bool, error) {
	var accepted *model.FriendRequest

	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req model.FriendRequest
		if err := tx.First(&req, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if req.Status != model.FriendRequestPending {
			return nil
		}

		res := tx.Model(&model.FriendRequest{}).
			Where("id = ? AND status = ?", req.ID, model.FriendRequestPending).
			Updates(map[string]interface{}{
				"status":      model.FriendRequestAccepted,
				"pending_key": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := addFriendship(tx, req.SenderID, req.ReceiverID); err != nil {
			return err
		}
		if err := tx.Delete(&model.FriendRequest{}, req.ID).Error; err != nil {
			return err
		}
		accepted = &req
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("friend: accept request %d: %w", requestID, err)
	}
	if accepted == nil {
		svc.logger.Debug("friend request not acceptable", zap.Int64("request_id", requestID))
		return false, nil
	}

	svc.logger.Info("friend request accepted",
		zap.Int64("request_id", requestID),
		zap.Int64("sender_id", accepted.SenderID),
		zap.Int64("receiver_id", accepted.ReceiverID))
	return true, nil
}

// Reject marks a Pending request as Rejected. The row is kept.
// It reports false when the request does not exist or is no longer Pending.
func (svc *Service) Reject(ctx context.Context, requestID int64) (bool, error) {
	res := svc.db.WithContext(ctx).Model(&model.FriendRequest{}).
		Where("id = ? AND status = ?", requestID, model.FriendRequestPending).
		Updates(map[string]interface{}{
			"status":      model.FriendRequestRejected,
			"pending_key": nil,
		})
	if res.Error != nil {
		return false, fmt.Errorf("friend: reject request %d: %w", requestID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	svc.logger.Info("friend request rejected", zap.Int64("request_id", requestID))
	return true, nil
}

// Pending lists the Pending requests addressed to userID, oldest first.
func (svc *Service) Pending(ctx context.Context, userID int64) ([]RequestView, error) {
	views := []RequestView{}
	err := svc.db.WithContext(ctx).Table("friend_requests AS fr").
		Select("fr.id, fr.sender_id, s.username AS sender_name, fr.receiver_id, r.username AS receiver_name, fr.status, fr.sent_at").
		Joins("JOIN users s ON s.id = fr.sender_id").
		Joins("JOIN users r ON r.id = fr.receiver_id").
		Where("fr.receiver_id = ? AND fr.status = ?", userID, model.FriendRequestPending).
		Order("fr.sent_at ASC, fr.id ASC").
		Scan(&views).Error
	if err != nil {
		return nil, fmt.Errorf("friend: list pending for %d: %w", userID, err)
	}
	return views, nil
}

// Friends lists every friendship row in which userID appears on either side.
func (svc *Service) Friends(ctx context.Context, userID int64) ([]FriendView, error) {
	views := []FriendView{}
	err := svc.db.WithContext(ctx).Table("friends AS f").
		Select("f.id, f.user_id, u.username AS user_name, f.friend_id, o.username AS friend_name, f.created_at").
		Joins("JOIN users u ON u.id = f.user_id").
		Joins("JOIN users o ON o.id = f.friend_id").
		Where("f.user_id = ? OR f.friend_id = ?", userID, userID).
		Order("f.created_at ASC, f.id ASC").
		Scan(&views).Error
	if err != nil {
		return nil, fmt.Errorf("friend: list friends for %d: %w", userID, err)
	}
	return views, nil
}

// addFriendship is the only place friendship rows are created. One logical
// edge is stored as two directed rows; an existing row is left untouched.
func addFriendship(tx *gorm.DB, a, b int64) error {
	now := time.Now().UTC()
	edges := []model.Friend{
		{UserID: a, FriendID: b, CreatedAt: now},
		{UserID: b, FriendID: a, CreatedAt: now},
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edges).Error
}

func hasEdge(db *gorm.DB, a, b int64) (bool, error) {
	var n int64
	err := db.Model(&model.Friend{}).
		Where("user_id = ? AND friend_id = ?", a, b).
		Count(&n).Error
	return n > 0, err
}
