package model

import "time"

// Episode is read-only reference data: a fixed scenario prompt the
// character reacts to, with a time-of-day label for display.
type Episode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"size:200;not null" json:"content"`
	TimeLabel string    `gorm:"size:200" json:"time_label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
