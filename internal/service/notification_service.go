package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/lifehub-app/notify-engine/internal/model"
	"github.com/lifehub-app/notify-engine/internal/repository"
	"github.com/lifehub-app/notify-engine/pkg/apperror"
)

// Live event names pushed to websocket clients.
const (
	EventNotificationNew       = "notification:new"
	EventNotificationWorkspace = "notification:workspace"
	EventNotificationSystem    = "notification:system"
)

// RelayChannel is the redis pub/sub channel for a user's notifications,
// consumed by every instance's live hub.
func RelayChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_notifications:%s", userID.String())
}

// LiveBroadcaster is the hub-facing side of the live delivery path. It is
// best-effort and never affects the durable lifecycle state.
type LiveBroadcaster interface {
	SendToUser(userID uuid.UUID, event string, payload interface{})
	SendToWorkspace(workspaceID uuid.UUID, event string, payload interface{})
	BroadcastSystem(event string, payload interface{})
}

// CreateNotificationInput is the producer-facing creation request.
type CreateNotificationInput struct {
	UserID       uuid.UUID
	WorkspaceID  uuid.UUID
	Type         model.NotificationType
	Priority     model.Priority
	Title        string
	Message      string
	Metadata     model.JSONMap
	EntityID     *uuid.UUID
	EntityType   string
	Channels     model.StringList
	ScheduledFor *time.Time
}

type ListResult struct {
	Items       []model.Notification `json:"items"`
	Total       int64                `json:"total"`
	UnreadCount int64                `json:"unread_count"`
}

type NotificationService interface {
	Create(ctx context.Context, input CreateNotificationInput) (*model.Notification, error)
	List(filter repository.ListFilter) (*ListResult, error)
	MarkAsRead(userID, id uuid.UUID) error
	// MarkDelivered records a live-client acknowledgement. It only moves a
	// sent notification forward, never a read one back.
	MarkDelivered(userID, id uuid.UUID) error
	MarkAllAsRead(userID, workspaceID uuid.UUID) (int64, error)
	// MarkManyAsRead marks a batch of the caller's notifications read and
	// returns how many rows actually changed.
	MarkManyAsRead(userID uuid.UUID, ids []uuid.UUID) (int64, error)
	Delete(userID, id uuid.UUID) error
	UnreadCount(userID, workspaceID uuid.UUID) (int64, error)
	Stats(userID, workspaceID uuid.UUID) (*repository.NotificationStats, error)
	// DispatchDueScheduled releases pending notifications whose scheduled
	// time has arrived. Called by a scheduler pass.
	DispatchDueScheduled(ctx context.Context, limit int) (int, error)
	// SetBroadcaster attaches the live hub. Wired after construction because
	// the hub routes client events back into this service.
	SetBroadcaster(b LiveBroadcaster)
}

type notificationService struct {
	repo        repository.NotificationRepository
	dispatcher  Dispatcher
	redisClient *redis.Client
	broadcaster LiveBroadcaster
	now         func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, dispatcher Dispatcher, redisClient *redis.Client) NotificationService {
	return &notificationService{
		repo:        repo,
		dispatcher:  dispatcher,
		redisClient: redisClient,
		now:         time.Now,
	}
}

func (s *notificationService) SetBroadcaster(b LiveBroadcaster) {
	s.broadcaster = b
}

func (s *notificationService) Create(ctx context.Context, input CreateNotificationInput) (*model.Notification, error) {
	if input.UserID == uuid.Nil {
		return nil, apperror.Invalid("user id is required")
	}
	if input.Title == "" {
		return nil, apperror.Invalid("title is required")
	}
	if !model.ValidType(input.Type) {
		return nil, apperror.Invalid("unknown notification type %q", input.Type)
	}
	if input.Priority == "" {
		input.Priority = model.PriorityMedium
	}
	if !model.ValidPriority(input.Priority) {
		return nil, apperror.Invalid("unknown priority %q", input.Priority)
	}
	for _, ch := range input.Channels {
		if !model.ValidChannel(ch) {
			return nil, apperror.Invalid("unknown channel %q", ch)
		}
	}
	if len(input.Channels) == 0 {
		input.Channels = model.DefaultChannels()
	}

	n := &model.Notification{
		UserID:       input.UserID,
		WorkspaceID:  input.WorkspaceID,
		Type:         input.Type,
		Priority:     input.Priority,
		Title:        input.Title,
		Message:      input.Message,
		Metadata:     input.Metadata,
		EntityID:     input.EntityID,
		EntityType:   input.EntityType,
		Channels:     input.Channels,
		Status:       model.StatusPending,
		ScheduledFor: input.ScheduledFor,
	}

	if err := s.repo.Create(n); err != nil {
		return nil, err
	}

	// Future-scheduled notifications stay pending until a scheduler pass
	// finds them due.
	if n.DueForDispatch(s.now()) {
		s.release(ctx, n)
	}

	return n, nil
}

// release pushes the live event and runs the durable channel dispatch.
// When Redis is present the per-user event travels through the relay channel
// so every instance's hub (including the local one) delivers it exactly once;
// without Redis the local hub is hit directly.
func (s *notificationService) release(ctx context.Context, n *model.Notification) {
	if s.redisClient != nil {
		s.publish(ctx, n)
	} else if s.broadcaster != nil {
		s.broadcaster.SendToUser(n.UserID, EventNotificationNew, n)
	}
	if s.broadcaster != nil && n.WorkspaceID != uuid.Nil {
		s.broadcaster.SendToWorkspace(n.WorkspaceID, EventNotificationWorkspace, n)
	}
	s.dispatcher.Dispatch(ctx, n)
}

func (s *notificationService) publish(ctx context.Context, n *model.Notification) {
	if s.redisClient == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := s.redisClient.Publish(ctx, RelayChannel(n.UserID), payload).Err(); err != nil {
		log.Printf("redis publish for notification %s: %v", n.ID, err)
	}
}

func (s *notificationService) List(filter repository.ListFilter) (*ListResult, error) {
	items, total, err := s.repo.List(filter)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(filter.UserID, filter.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: items, Total: total, UnreadCount: unread}, nil
}

func (s *notificationService) MarkAsRead(userID, id uuid.UUID) error {
	n, err := s.getOwned(userID, id)
	if err != nil {
		return err
	}
	if n.Status == model.StatusRead {
		return nil
	}
	return s.repo.MarkAsRead(id, s.now())
}

func (s *notificationService) MarkDelivered(userID, id uuid.UUID) error {
	n, err := s.getOwned(userID, id)
	if err != nil {
		return err
	}
	if n.Status != model.StatusSent {
		return nil
	}
	return s.repo.UpdateStatus(id, model.StatusDelivered, nil)
}

func (s *notificationService) MarkAllAsRead(userID, workspaceID uuid.UUID) (int64, error) {
	return s.repo.MarkAllAsRead(userID, workspaceID, s.now())
}

func (s *notificationService) MarkManyAsRead(userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, apperror.Invalid("ids must not be empty")
	}
	return s.repo.MarkReadByIDs(userID, ids, s.now())
}

func (s *notificationService) Delete(userID, id uuid.UUID) error {
	if _, err := s.getOwned(userID, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(id)
}

func (s *notificationService) UnreadCount(userID, workspaceID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(userID, workspaceID)
}

func (s *notificationService) Stats(userID, workspaceID uuid.UUID) (*repository.NotificationStats, error) {
	return s.repo.Stats(userID, workspaceID)
}

func (s *notificationService) DispatchDueScheduled(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	due, err := s.repo.ListDueScheduled(s.now(), limit)
	if err != nil {
		return 0, err
	}
	for i := range due {
		s.release(ctx, &due[i])
	}
	return len(due), nil
}

func (s *notificationService) getOwned(userID, id uuid.UUID) (*model.Notification, error) {
	n, err := s.repo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, apperror.ErrForbidden
	}
	return n, nil
}
