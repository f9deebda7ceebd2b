package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"chatcoach/internal/model"
)

type CharacterRepository struct {
	db *gorm.DB
}

func NewCharacterRepository(db *gorm.DB) *CharacterRepository {
	return &CharacterRepository{db: db}
}

func (r *CharacterRepository) GetByID(id uint) (*model.Character, error) {
	var character model.Character
	if err := r.db.First(&character, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query character by id failed: %w", err)
	}
	return &character, nil
}

func (r *CharacterRepository) List() ([]model.Character, error) {
	var characters []model.Character
	if err := r.db.Order("id ASC").Find(&characters).Error; err != nil {
		return nil, fmt.Errorf("list characters failed: %w", err)
	}
	return characters, nil
}
