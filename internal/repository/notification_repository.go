package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lifehub-app/notify-engine/internal/model"
)

// ListFilter narrows a notification listing. Zero values mean "no filter".
type ListFilter struct {
	UserID      uuid.UUID
	WorkspaceID uuid.UUID
	Type        model.NotificationType
	Status      model.NotificationStatus
	Priority    model.Priority
	UnreadOnly  bool
	EntityID    uuid.UUID
	From        *time.Time
	To          *time.Time
	SortBy      string // created_at | priority | scheduled_for
	Limit       int
	Offset      int
}

// NotificationStats is computed on read; nothing aggregate is persisted.
type NotificationStats struct {
	Total      int64                                 `json:"total"`
	Unread     int64                                 `json:"unread"`
	Today      int64                                 `json:"today"`
	ThisWeek   int64                                 `json:"this_week"`
	ByType     map[model.NotificationType]int64      `json:"by_type"`
	ByPriority map[model.Priority]int64              `json:"by_priority"`
	ByStatus   map[model.NotificationStatus]int64    `json:"by_status"`
}

type NotificationRepository interface {
	Create(notification *model.Notification) error
	GetByID(id uuid.UUID) (*model.Notification, error)
	List(filter ListFilter) ([]model.Notification, int64, error)
	CountUnread(userID, workspaceID uuid.UUID) (int64, error)
	MarkAsRead(id uuid.UUID, at time.Time) error
	MarkAllAsRead(userID, workspaceID uuid.UUID, at time.Time) (int64, error)
	MarkReadByIDs(userID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error)
	UpdateStatus(id uuid.UUID, status model.NotificationStatus, sentAt *time.Time) error
	SoftDelete(id uuid.UUID) error
	ListDueScheduled(now time.Time, limit int) ([]model.Notification, error)
	Stats(userID, workspaceID uuid.UUID) (*NotificationStats, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(notification *model.Notification) error {
	return r.db.Create(notification).Error
}

func (r *notificationRepository) GetByID(id uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) List(filter ListFilter) ([]model.Notification, int64, error) {
	q := r.db.Model(&model.Notification{})

	if filter.UserID != uuid.Nil {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.WorkspaceID != uuid.Nil {
		q = q.Where("workspace_id = ?", filter.WorkspaceID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}
	if filter.UnreadOnly {
		q = q.Where("status <> ?", model.StatusRead)
	}
	if filter.EntityID != uuid.Nil {
		q = q.Where("entity_id = ?", filter.EntityID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var notifications []model.Notification
	err := q.Order(sortClause(filter.SortBy)).
		Limit(limit).
		Offset(filter.Offset).
		Find(&notifications).Error
	return notifications, total, err
}

func sortClause(sortBy string) string {
	switch sortBy {
	case "priority":
		// urgent first
		return "array_position(ARRAY['urgent','high','medium','low'], priority::text), created_at desc"
	case "scheduled_for":
		return "scheduled_for asc nulls last, created_at desc"
	default:
		return "created_at desc"
	}
}

func (r *notificationRepository) CountUnread(userID, workspaceID uuid.UUID) (int64, error) {
	q := r.db.Model(&model.Notification{}).
		Where("user_id = ? AND status <> ?", userID, model.StatusRead)
	if workspaceID != uuid.Nil {
		q = q.Where("workspace_id = ?", workspaceID)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

// Read transitions backfill sent_at so a read row always carries a sent
// timestamp, even when the user reads a still-pending scheduled
// notification in-app before dispatch. Reading supersedes the pending
// dispatch, so the scheduled release no longer picks the row up.
func (r *notificationRepository) MarkAsRead(id uuid.UUID, at time.Time) error {
	return r.db.Model(&model.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  model.StatusRead,
			"read_at": at,
			"sent_at": gorm.Expr("COALESCE(sent_at, ?)", at),
		}).Error
}

func (r *notificationRepository) MarkAllAsRead(userID, workspaceID uuid.UUID, at time.Time) (int64, error) {
	q := r.db.Model(&model.Notification{}).
		Where("user_id = ? AND status <> ?", userID, model.StatusRead)
	if workspaceID != uuid.Nil {
		q = q.Where("workspace_id = ?", workspaceID)
	}
	res := q.Updates(map[string]interface{}{
		"status":  model.StatusRead,
		"read_at": at,
		"sent_at": gorm.Expr("COALESCE(sent_at, ?)", at),
	})
	return res.RowsAffected, res.Error
}

// MarkReadByIDs marks a caller-supplied batch read. The user scope keeps a
// forged id list from touching someone else's rows.
func (r *notificationRepository) MarkReadByIDs(userID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error) {
	res := r.db.Model(&model.Notification{}).
		Where("user_id = ? AND id IN ? AND status <> ?", userID, ids, model.StatusRead).
		Updates(map[string]interface{}{
			"status":  model.StatusRead,
			"read_at": at,
			"sent_at": gorm.Expr("COALESCE(sent_at, ?)", at),
		})
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) UpdateStatus(id uuid.UUID, status model.NotificationStatus, sentAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if sentAt != nil {
		updates["sent_at"] = *sentAt
	}
	return r.db.Model(&model.Notification{}).Where("id = ?", id).Updates(updates).Error
}

func (r *notificationRepository) SoftDelete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&model.Notification{}).Error
}

func (r *notificationRepository) ListDueScheduled(now time.Time, limit int) ([]model.Notification, error) {
	var notifications []model.Notification
	err := r.db.Where("status = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?",
		model.StatusPending, now).
		Order("scheduled_for asc").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (r *notificationRepository) Stats(userID, workspaceID uuid.UUID) (*NotificationStats, error) {
	stats := &NotificationStats{
		ByType:     make(map[model.NotificationType]int64),
		ByPriority: make(map[model.Priority]int64),
		ByStatus:   make(map[model.NotificationStatus]int64),
	}

	base := func() *gorm.DB {
		q := r.db.Model(&model.Notification{}).Where("user_id = ?", userID)
		if workspaceID != uuid.Nil {
			q = q.Where("workspace_id = ?", workspaceID)
		}
		return q
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status <> ?", model.StatusRead).Count(&stats.Unread).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := base().Where("created_at >= ?", startOfDay).Count(&stats.Today).Error; err != nil {
		return nil, err
	}
	if err := base().Where("created_at >= ?", now.AddDate(0, 0, -7)).Count(&stats.ThisWeek).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Key   string
		Count int64
	}

	groupCount := func(column string) ([]bucket, error) {
		var rows []bucket
		err := base().Select(column + " as key, count(*) as count").Group(column).Scan(&rows).Error
		return rows, err
	}

	typeRows, err := groupCount("type")
	if err != nil {
		return nil, err
	}
	for _, row := range typeRows {
		stats.ByType[model.NotificationType(row.Key)] = row.Count
	}

	priorityRows, err := groupCount("priority")
	if err != nil {
		return nil, err
	}
	for _, row := range priorityRows {
		stats.ByPriority[model.Priority(row.Key)] = row.Count
	}

	statusRows, err := groupCount("status")
	if err != nil {
		return nil, err
	}
	for _, row := range statusRows {
		stats.ByStatus[model.NotificationStatus(row.Key)] = row.Count
	}

	return stats, nil
}
