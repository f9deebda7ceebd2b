package model

import "time"

// ChatRoom is one user-character conversation session. Result stays
// empty until the final synthesized assessment is persisted.
type ChatRoom struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	CharacterID uint      `gorm:"not null;index" json:"character_id"`
	Result      string    `gorm:"size:2000" json:"result"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
