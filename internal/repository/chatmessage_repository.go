package repository

import (
	"fmt"

	"gorm.io/gorm"

	"chatcoach/internal/model"
)

type ChatMessageRepository struct {
	db *gorm.DB
}

func NewChatMessageRepository(db *gorm.DB) *ChatMessageRepository {
	return &ChatMessageRepository{db: db}
}

func (r *ChatMessageRepository) Create(message *model.ChatMessage) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create chat message failed: %w", err)
	}
	return nil
}

func (r *ChatMessageRepository) ListByRoomID(roomID uint) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	if err := r.db.Where("chat_room_id = ?", roomID).Order("created_at ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list chat messages failed: %w", err)
	}
	return messages, nil
}
