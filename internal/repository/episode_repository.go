package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"chatcoach/internal/model"
)

type EpisodeRepository struct {
	db *gorm.DB
}

func NewEpisodeRepository(db *gorm.DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

func (r *EpisodeRepository) GetByID(id uint) (*model.Episode, error) {
	var episode model.Episode
	if err := r.db.First(&episode, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query episode by id failed: %w", err)
	}
	return &episode, nil
}

func (r *EpisodeRepository) List() ([]model.Episode, error) {
	var episodes []model.Episode
	if err := r.db.Order("id ASC").Find(&episodes).Error; err != nil {
		return nil, fmt.Errorf("list episodes failed: %w", err)
	}
	return episodes, nil
}
