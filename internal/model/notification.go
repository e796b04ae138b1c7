package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	TypeTaskDue       NotificationType = "task_due"
	TypeTaskOverdue   NotificationType = "task_overdue"
	TypeMention       NotificationType = "mention"
	TypeComment       NotificationType = "comment"
	TypeGoalDeadline  NotificationType = "goal_deadline"
	TypeHabitReminder NotificationType = "habit_reminder"
	TypeSystem        NotificationType = "system"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type NotificationStatus string

const (
	StatusPending   NotificationStatus = "pending"
	StatusSent      NotificationStatus = "sent"
	StatusDelivered NotificationStatus = "delivered"
	StatusRead      NotificationStatus = "read"
	StatusFailed    NotificationStatus = "failed"
)

// Delivery channel names.
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelPush  = "push"
	ChannelSMS   = "sms"
)

type Notification struct {
	ID           uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID       uuid.UUID          `gorm:"type:uuid;not null;index" json:"user_id"`
	WorkspaceID  uuid.UUID          `gorm:"type:uuid;index" json:"workspace_id"`
	Type         NotificationType   `gorm:"type:varchar(50);not null;index" json:"type"`
	Priority     Priority           `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`
	Title        string             `gorm:"type:varchar(255);not null" json:"title"`
	Message      string             `gorm:"type:text" json:"message"`
	Metadata     JSONMap            `gorm:"type:jsonb" json:"metadata,omitempty"`
	EntityID     *uuid.UUID         `gorm:"type:uuid;index" json:"entity_id,omitempty"`
	EntityType   string             `gorm:"type:varchar(50)" json:"entity_type,omitempty"`
	Channels     StringList         `gorm:"type:jsonb" json:"channels"`
	Status       NotificationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ScheduledFor *time.Time         `gorm:"index" json:"scheduled_for,omitempty"`
	SentAt       *time.Time         `json:"sent_at,omitempty"`
	ReadAt       *time.Time         `json:"read_at,omitempty"`
	CreatedAt    time.Time          `gorm:"autoCreateTime;index" json:"created_at"`
	DeletedAt    gorm.DeletedAt     `gorm:"index" json:"-"`
}

// IsUnread reports whether the notification still counts toward the badge.
func (n *Notification) IsUnread() bool {
	return n.Status != StatusRead
}

// DueForDispatch reports whether a scheduled notification may be sent now.
func (n *Notification) DueForDispatch(now time.Time) bool {
	return n.ScheduledFor == nil || !n.ScheduledFor.After(now)
}

func ValidType(t NotificationType) bool {
	switch t {
	case TypeTaskDue, TypeTaskOverdue, TypeMention, TypeComment,
		TypeGoalDeadline, TypeHabitReminder, TypeSystem:
		return true
	}
	return false
}

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func ValidChannel(c string) bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS:
		return true
	}
	return false
}
