package model

import "time"

type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// TaskRecord tracks one background task through its lifecycle.
// Failed tasks keep the error text; nothing is retried automatically.
type TaskRecord struct {
	ID     string `gorm:"primaryKey;size:26" json:"id"` // ULID
	Kind   string `gorm:"size:32;not null;index" json:"kind"`
	UserID uint   `gorm:"not null;index" json:"user_id"`

	Status TaskStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Error  *string    `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
