package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/lifehub-app/notify-engine/internal/model"
)

type TaskRepository interface {
	// DueBetween returns incomplete tasks whose due date falls inside
	// [from, to). The reminder scans pick the window wide enough to cover
	// every configured offset.
	DueBetween(from, to time.Time) ([]model.Task, error)
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) DueBetween(from, to time.Time) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.Where("status <> ? AND due_date IS NOT NULL AND due_date >= ? AND due_date < ?",
		model.TaskStatusCompleted, from, to).
		Find(&tasks).Error
	return tasks, err
}
