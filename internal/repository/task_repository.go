package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"chatcoach/internal/model"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(record *model.TaskRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("create task record failed: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(id string) (*model.TaskRecord, error) {
	var record model.TaskRecord
	if err := r.db.First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query task record failed: %w", err)
	}
	return &record, nil
}

func (r *TaskRepository) MarkRunning(id string) error {
	return r.updateStatus(id, model.TaskRunning, nil)
}

func (r *TaskRepository) MarkSucceeded(id string) error {
	return r.updateStatus(id, model.TaskSucceeded, nil)
}

func (r *TaskRepository) MarkFailed(id, taskErr string) error {
	return r.updateStatus(id, model.TaskFailed, &taskErr)
}

func (r *TaskRepository) updateStatus(id string, status model.TaskStatus, taskErr *string) error {
	updates := map[string]interface{}{"status": status}
	if taskErr != nil {
		updates["error"] = *taskErr
	}
	if err := r.db.Model(&model.TaskRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update task status failed: %w", err)
	}
	return nil
}
