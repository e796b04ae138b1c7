package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lifehub-app/notify-engine/internal/model"
	"github.com/lifehub-app/notify-engine/internal/repository"
	"github.com/lifehub-app/notify-engine/internal/service"
	"github.com/lifehub-app/notify-engine/pkg/apperror"
	"github.com/lifehub-app/notify-engine/pkg/response"
	"github.com/lifehub-app/notify-engine/pkg/validator"
)

// ReminderPurger clears dedup state when an entity is completed upstream.
type ReminderPurger interface {
	EntityCompleted(ctx context.Context, entityID uuid.UUID) error
}

type NotificationHandler struct {
	service     service.NotificationService
	broadcaster service.LiveBroadcaster
	purger      ReminderPurger
}

func NewNotificationHandler(svc service.NotificationService, broadcaster service.LiveBroadcaster, purger ReminderPurger) *NotificationHandler {
	return &NotificationHandler{
		service:     svc,
		broadcaster: broadcaster,
		purger:      purger,
	}
}

type createNotificationRequest struct {
	UserID       uuid.UUID              `json:"user_id" binding:"required"`
	WorkspaceID  *uuid.UUID             `json:"workspace_id"`
	Type         string                 `json:"type" binding:"required"`
	Priority     string                 `json:"priority"`
	Title        string                 `json:"title" binding:"required,max=255"`
	Message      string                 `json:"message"`
	Metadata     map[string]interface{} `json:"metadata"`
	EntityID     *uuid.UUID             `json:"entity_id"`
	EntityType   string                 `json:"entity_type"`
	Channels     []string               `json:"channels"`
	ScheduledFor *time.Time             `json:"scheduled_for"`
}

func (h *NotificationHandler) Create(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, apperror.Invalid("%s", validator.FormatValidationError(err)))
		return
	}

	workspaceID := response.GetWorkspaceID(c)
	if req.WorkspaceID != nil {
		workspaceID = *req.WorkspaceID
	}

	n, err := h.service.Create(c.Request.Context(), service.CreateNotificationInput{
		UserID:       req.UserID,
		WorkspaceID:  workspaceID,
		Type:         model.NotificationType(req.Type),
		Priority:     model.Priority(req.Priority),
		Title:        req.Title,
		Message:      req.Message,
		Metadata:     req.Metadata,
		EntityID:     req.EntityID,
		EntityType:   req.EntityType,
		Channels:     req.Channels,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": n})
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	filter := repository.ListFilter{
		UserID:      userID,
		WorkspaceID: response.GetWorkspaceID(c),
		Type:        model.NotificationType(c.Query("type")),
		Status:      model.NotificationStatus(c.Query("status")),
		Priority:    model.Priority(c.Query("priority")),
		UnreadOnly:  c.Query("unread") == "true",
		SortBy:      c.Query("sort"),
		Limit:       intQuery(c, "limit", 20),
		Offset:      intQuery(c, "offset", 0),
	}
	if entityID, err := uuid.Parse(c.Query("entity_id")); err == nil {
		filter.EntityID = entityID
	}
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		filter.To = &to
	}

	result, err := h.service.List(filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	count, err := h.service.UnreadCount(userID, response.GetWorkspaceID(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.Invalid("invalid notification id"))
		return
	}

	if err := h.service.MarkAsRead(userID, id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}

type markManyReadRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1"`
}

// MarkManyAsRead marks a batch of ids read in one statement.
func (h *NotificationHandler) MarkManyAsRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req markManyReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, apperror.Invalid("%s", validator.FormatValidationError(err)))
		return
	}

	updated, err := h.service.MarkManyAsRead(userID, req.IDs)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "notifications marked as read", "updated": updated})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	updated, err := h.service.MarkAllAsRead(userID, response.GetWorkspaceID(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "all notifications marked as read", "updated": updated})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.Invalid("invalid notification id"))
		return
	}

	if err := h.service.Delete(userID, id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "notification deleted"})
}

func (h *NotificationHandler) Stats(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	stats, err := h.service.Stats(userID, response.GetWorkspaceID(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

type systemBroadcastRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Message string `json:"message"`
}

// SystemBroadcast pushes a platform-wide live announcement. Best-effort
// only; nothing durable is written.
func (h *NotificationHandler) SystemBroadcast(c *gin.Context) {
	var req systemBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, apperror.Invalid("%s", validator.FormatValidationError(err)))
		return
	}

	h.broadcaster.BroadcastSystem(service.EventNotificationSystem, gin.H{
		"title":   req.Title,
		"message": req.Message,
	})

	c.JSON(http.StatusOK, gin.H{"message": "broadcast sent"})
}

// EntityCompleted is the upstream hook fired when a task is completed or
// cancelled, so the reminder dedup state for its id does not linger.
func (h *NotificationHandler) EntityCompleted(c *gin.Context) {
	entityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.Invalid("invalid entity id"))
		return
	}

	if err := h.purger.EntityCompleted(c.Request.Context(), entityID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reminder state purged"})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
