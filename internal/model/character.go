package model

import "time"

// Character is read-only reference data: a persona definition that
// conditions the voice and style of generated replies.
type Character struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:20;not null" json:"name"`
	Script    string    `gorm:"size:1000;not null" json:"script"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
