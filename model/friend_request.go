package model

import (
	"fmt"
	"time"
)

// FriendRequestStatus is the lifecycle state of a FriendRequest.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "Pending"
	FriendRequestAccepted FriendRequestStatus = "Accepted"
	FriendRequestRejected FriendRequestStatus = "Rejected"
)

// FriendRequest is a directed friendship proposal.
//
// PendingKey holds "<sender>:<receiver>" while the request is Pending and NULL
// afterwards. Its unique index allows any number of resolved rows per pair but
// only one Pending row.
type FriendRequest struct {
	ID         int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID   int64               `gorm:"index:idx_friend_request_sender;not null" json:"senderId"`
	ReceiverID int64               `gorm:"index:idx_friend_request_receiver;not null" json:"receiverId"`
	Status     FriendRequestStatus `gorm:"size:16;not null;default:'Pending'" json:"status"`
	SentAt     time.Time           `gorm:"not null" json:"sentAt"`
	PendingKey *string             `gorm:"uniqueIndex:idx_friend_request_pending;size:64" json:"-"`

	Sender   *User `gorm:"foreignKey:SenderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Receiver *User `gorm:"foreignKey:ReceiverID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

// PendingKeyFor returns the PendingKey value for an ordered (sender, receiver) pair.
func PendingKeyFor(senderID, receiverID int64) *string {
	k := fmt.Sprintf("%d:%d", senderID, receiverID)
	return &k
}
