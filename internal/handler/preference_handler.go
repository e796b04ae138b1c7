package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifehub-app/notify-engine/internal/model"
	"github.com/lifehub-app/notify-engine/internal/service"
	"github.com/lifehub-app/notify-engine/pkg/apperror"
	"github.com/lifehub-app/notify-engine/pkg/response"
	"github.com/lifehub-app/notify-engine/pkg/validator"
)

type PreferenceHandler struct {
	service service.PreferenceService
}

func NewPreferenceHandler(svc service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{service: svc}
}

func (h *PreferenceHandler) Get(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	prefs, err := h.service.Get(userID, response.GetWorkspaceID(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": prefs})
}

type updatePreferencesRequest struct {
	Enabled              *bool              `json:"enabled"`
	WeekendNotifications *bool              `json:"weekend_notifications"`
	EmailDigest          *bool              `json:"email_digest"`
	EmailDigestFrequency string             `json:"email_digest_frequency"`
	QuietHoursStart      string             `json:"quiet_hours_start"`
	QuietHoursEnd        string             `json:"quiet_hours_end"`
	Timezone             string             `json:"timezone"`
	Types                model.TypeSettings `json:"types"`
}

// Update is an upsert: the first customization lazily creates the row.
func (h *PreferenceHandler) Update(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req updatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, apperror.Invalid("%s", validator.FormatValidationError(err)))
		return
	}

	workspaceID := response.GetWorkspaceID(c)

	// Start from current effective settings so a partial update does not
	// clobber the rest.
	prefs, err := h.service.Get(userID, workspaceID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if req.Enabled != nil {
		prefs.Enabled = *req.Enabled
	}
	if req.WeekendNotifications != nil {
		prefs.WeekendNotifications = *req.WeekendNotifications
	}
	if req.EmailDigest != nil {
		prefs.EmailDigest = *req.EmailDigest
	}
	if req.EmailDigestFrequency != "" {
		prefs.EmailDigestFrequency = model.Frequency(req.EmailDigestFrequency)
	}
	if req.QuietHoursStart != "" || req.QuietHoursEnd != "" {
		prefs.QuietHoursStart = req.QuietHoursStart
		prefs.QuietHoursEnd = req.QuietHoursEnd
	}
	if req.Timezone != "" {
		prefs.Timezone = req.Timezone
	}
	if req.Types != nil {
		prefs.Types = req.Types
	}

	updated, err := h.service.Upsert(userID, workspaceID, prefs)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated})
}
