package models

import "time"

// Message is one direct message between two users. At least one of Text and
// AttachmentURL is always present; Seen flips to true in bulk when the
// receiver opens the conversation.
type Message struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	SenderID      uint      `gorm:"not null;index:idx_messages_pair" json:"senderId"`
	ReceiverID    uint      `gorm:"not null;index:idx_messages_pair" json:"receiverId"`
	Text          string    `json:"text"`
	AttachmentURL string    `gorm:"size:512" json:"attachmentUrl"`
	Seen          bool      `gorm:"not null;default:false;index" json:"seen"`
	CreatedAt     time.Time `gorm:"index" json:"createdAt"`

	Sender   User `gorm:"foreignKey:SenderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Receiver User `gorm:"foreignKey:ReceiverID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
