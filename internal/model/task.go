package model

import (
	"time"

	"github.com/google/uuid"
)

const TaskStatusCompleted = "completed"

// Task is the minimal shape the reminder scheduler scans. Task CRUD lives
// in the surrounding application; the engine only reads due dates,
// completion status and assignees.
type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	WorkspaceID uuid.UUID  `gorm:"type:uuid;index" json:"workspace_id"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Status      string     `gorm:"type:varchar(32);not null;default:'open';index" json:"status"`
	DueDate     *time.Time `gorm:"index" json:"due_date,omitempty"`
	Assignees   UUIDList   `gorm:"type:jsonb" json:"assignees"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Task) Completed() bool {
	return t.Status == TaskStatusCompleted
}
