package model

import "time"

// Message is a direct message from one user to another.
// Timestamp is assigned once at send time; IsRead only ever goes false -> true.
type Message struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID   int64     `gorm:"index:idx_message_pair,priority:1;not null" json:"senderId"`
	ReceiverID int64     `gorm:"index:idx_message_pair,priority:2;not null" json:"receiverId"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Timestamp  time.Time `gorm:"index:idx_message_pair,priority:3;not null" json:"timestamp"`
	IsRead     bool      `gorm:"default:false;not null" json:"isRead"`

	Sender   *User `gorm:"foreignKey:SenderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Receiver *User `gorm:"foreignKey:ReceiverID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}
