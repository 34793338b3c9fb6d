package model

import "time"

// Friend is one directed half of a friendship. An accepted request between
// A and B is stored as two rows, (A,B) and (B,A).
type Friend struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex:idx_friend_edge,priority:1;not null" json:"userId"`
	FriendID  int64     `gorm:"uniqueIndex:idx_friend_edge,priority:2;index:idx_friend_reverse;not null" json:"friendId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	User       *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	FriendUser *User `gorm:"foreignKey:FriendID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}
