package model

import "time"

const (
	MessageTypeUser      = "user"
	MessageTypeAssistant = "assistant"
)

// ValidMessageType reports whether t is one of the two allowed
// message discriminators.
func ValidMessageType(t string) bool {
	return t == MessageTypeUser || t == MessageTypeAssistant
}

type ChatMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChatRoomID uint      `gorm:"not null;index" json:"chat_room_id"`
	Type       string    `gorm:"size:16;not null" json:"message_type"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
