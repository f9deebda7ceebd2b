package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"chatcoach/internal/model"
)

type ChatRoomRepository struct {
	db *gorm.DB
}

func NewChatRoomRepository(db *gorm.DB) *ChatRoomRepository {
	return &ChatRoomRepository{db: db}
}

func (r *ChatRoomRepository) Create(room *model.ChatRoom) error {
	if err := r.db.Create(room).Error; err != nil {
		return fmt.Errorf("create chat room failed: %w", err)
	}
	return nil
}

// GetByIDAndUserID is the ownership gate: a room that exists but
// belongs to someone else comes back nil, same as a missing room.
func (r *ChatRoomRepository) GetByIDAndUserID(roomID, userID uint) (*model.ChatRoom, error) {
	var room model.ChatRoom
	if err := r.db.Where("id = ? AND user_id = ?", roomID, userID).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat room failed: %w", err)
	}
	return &room, nil
}

func (r *ChatRoomRepository) ListByUserID(userID uint) ([]model.ChatRoom, error) {
	var rooms []model.ChatRoom
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("list chat rooms failed: %w", err)
	}
	return rooms, nil
}

func (r *ChatRoomRepository) ListWithResultByUserID(userID uint) ([]model.ChatRoom, error) {
	var rooms []model.ChatRoom
	if err := r.db.Where("user_id = ? AND result <> ''", userID).
		Order("created_at DESC").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("list result rooms failed: %w", err)
	}
	return rooms, nil
}

// UpdateResult writes the synthesized assessment, scoped to the owner.
// Returns false when no owned row matched.
func (r *ChatRoomRepository) UpdateResult(roomID, userID uint, result string) (bool, error) {
	tx := r.db.Model(&model.ChatRoom{}).
		Where("id = ? AND user_id = ?", roomID, userID).
		Update("result", result)
	if tx.Error != nil {
		return false, fmt.Errorf("update chat room result failed: %w", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (r *ChatRoomRepository) ClearResult(roomID, userID uint) (bool, error) {
	return r.UpdateResult(roomID, userID, "")
}

func (r *ChatRoomRepository) DeleteWithMessages(roomID, userID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_room_id = ?", roomID).Delete(&model.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("delete room messages failed: %w", err)
		}
		if err := tx.Where("id = ? AND user_id = ?", roomID, userID).Delete(&model.ChatRoom{}).Error; err != nil {
			return fmt.Errorf("delete chat room failed: %w", err)
		}
		return nil
	})
}
